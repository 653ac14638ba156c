// Package flock provides a per-project advisory lock adapter using flock(2).
package flock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/mcdonaldj/deployctl/internal/ports"
)

// LockFileName is the lock file created inside each project path.
const LockFileName = ".deployctl.lock"

// FlockLocker implements ports.Locker with an exclusive, non-blocking
// flock(2) on a lock file inside the project path. The lock file itself is
// left in place; only the flock is released.
type FlockLocker struct{}

// New creates a new FlockLocker adapter.
func New() *FlockLocker {
	return &FlockLocker{}
}

// Acquire takes the project lock or fails immediately if it is held.
func (l *FlockLocker) Acquire(projectPath string) (func(), error) {
	lockPath := filepath.Join(projectPath, LockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("another deployctl action is already running against %s", projectPath)
		}
		return nil, fmt.Errorf("locking %s: %w", lockPath, err)
	}

	release := func() {
		// Closing the descriptor drops the flock.
		f.Close()
	}
	return release, nil
}

// Compile-time check that FlockLocker implements ports.Locker.
var _ ports.Locker = (*FlockLocker)(nil)
