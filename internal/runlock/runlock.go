// Package runlock keeps two runs from writing the same output directory.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockName = ".medqa.lock"

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("output directory is locked by another run")

// Lock is an acquired run lock.
type Lock struct {
	file *flock.Flock
}

// Acquire takes a non-blocking exclusive lock on dir, creating it if needed.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory failed: %w", err)
	}
	lockPath := filepath.Join(dir, lockName)
	file := flock.New(lockPath)
	locked, err := file.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrHeld, lockPath)
	}
	return &Lock{file: file}, nil
}

// Release removes the lock file and drops the lock. It is safe to call on a
// nil lock.
func (lock *Lock) Release() error {
	if lock == nil || lock.file == nil {
		return nil
	}
	removeError := os.Remove(lock.file.Path())
	if removeError != nil && !os.IsNotExist(removeError) {
		removeError = fmt.Errorf("remove run lock %s: %w", lock.file.Path(), removeError)
	} else {
		removeError = nil
	}
	return errors.Join(removeError, lock.file.Unlock())
}
