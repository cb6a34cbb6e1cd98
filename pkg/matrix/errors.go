package matrix

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for settings that can never produce an
	// artifact for the given graph.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrWorkerFailure is matched by *WorkerError.
	ErrWorkerFailure = errors.New("worker failure")

	// ErrTimeout is returned when the search does not finish in time.
	ErrTimeout = errors.New("path matrix computation timed out")
)

// WorkerError reports the failure of the search seeded at Origin. A panic
// inside a worker is recovered into a WorkerError as well.
type WorkerError struct {
	Origin uint32
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker for origin %d: %v", e.Origin, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

func (e *WorkerError) Is(target error) bool {
	return target == ErrWorkerFailure
}

// errAborted stops a seed whose computation has already failed elsewhere.
var errAborted = errors.New("computation aborted")
