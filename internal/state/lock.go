package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/starford/study/internal/apperr"
)

// ErrLocked is returned when another process holds the run lock. It matches
// apperr.ErrConflict.
var ErrLocked = fmt.Errorf("state: another run holds the lock: %w", apperr.ErrConflict)

// RunLock is an advisory file lock held for the duration of a pipeline
// command so two processes never interleave state rewrites.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock file next to statePath without blocking.
func AcquireRunLock(statePath string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return nil, fmt.Errorf("state: lock dir: %w", err)
	}
	fl := flock.New(statePath + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("state: lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &RunLock{fl: fl}, nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
