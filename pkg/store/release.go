package store

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/hashicorp/go-multierror"
)

// Release unmaps a mapped region. It is safe to call with a nil region.
// Callers treat a failure as non-fatal: the only consequence is that the
// backing file may not be removable until the process exits.
func Release(m mmap.MMap) error {
	if m == nil {
		return nil
	}
	if err := m.Unmap(); err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	return nil
}

var pending = struct {
	sync.Mutex
	paths []string
}{}

// RemovePath deletes a file or directory tree. A path that cannot be removed
// is queued for RetryPendingRemovals and the error is returned so the caller
// can log it.
func RemovePath(path string) error {
	if err := removePath(path); err != nil {
		pending.Lock()
		pending.paths = append(pending.paths, path)
		pending.Unlock()
		return err
	}
	return nil
}

// PendingRemovals lists the paths still queued for removal.
func PendingRemovals() []string {
	pending.Lock()
	defer pending.Unlock()
	return append([]string(nil), pending.paths...)
}

// RetryPendingRemovals makes one more attempt at every queued path. Paths
// that still fail stay queued and their errors are aggregated.
func RetryPendingRemovals() error {
	pending.Lock()
	defer pending.Unlock()

	var result *multierror.Error
	kept := pending.paths[:0]
	for _, p := range pending.paths {
		if err := removePath(p); err != nil {
			result = multierror.Append(result, err)
			kept = append(kept, p)
		}
	}
	pending.paths = kept
	return result.ErrorOrNil()
}

func removePath(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// mappedFile is a read-write mapping of a sparse file of fixed size.
type mappedFile struct {
	path string
	data mmap.MMap
}

// createMapped creates (or truncates) path to size bytes and maps it
// read-write. The descriptor is closed once the mapping exists.
func createMapped(path string, size int64) (*mappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	mf := &mappedFile{path: path}
	if size == 0 {
		return mf, nil
	}
	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("truncate %s: %w", path, err)
	}
	data, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	mf.data = data
	return mf, nil
}

func (m *mappedFile) close() error {
	err := Release(m.data)
	m.data = nil
	return err
}

func (m *mappedFile) remove() error {
	var result *multierror.Error
	if err := m.close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := RemovePath(m.path); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
