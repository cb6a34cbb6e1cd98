package store

import (
	"errors"
	"fmt"
)

var (
	// ErrPathTooLong is returned when a path has more vertices than the
	// hop bound allows. At compaction time it means the hop bound the
	// stores were sized for does not match the one the search ran with.
	ErrPathTooLong = errors.New("path exceeds hop bound")

	// ErrMissingPath is matched by *MissingPathError.
	ErrMissingPath = errors.New("missing path")

	// ErrVertexOutOfRange is returned by Reader.GetPath for indices >= N.
	ErrVertexOutOfRange = errors.New("vertex out of range")

	// ErrCorrupt is returned when an artifact fails structural validation.
	ErrCorrupt = errors.New("corrupt artifact")
)

// MissingPathError reports a pair with no stored path at compaction.
type MissingPathError struct {
	I, J uint32
}

func (e *MissingPathError) Error() string {
	return fmt.Sprintf("missing path between %d and %d", e.I, e.J)
}

func (e *MissingPathError) Is(target error) bool {
	return target == ErrMissingPath
}
