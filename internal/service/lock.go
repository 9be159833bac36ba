package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// LockFileName is created in the server directory while a supervisor owns it.
const LockFileName = ".gamevisor.lock"

// DirLock keeps two supervisors from driving the same server directory.
type DirLock struct {
	l *flock.Flock
}

// LockDir acquires the lock on dir. It returns ErrLockedElsewhere if another
// supervisor holds it.
func LockDir(dir string) (*DirLock, error) {
	return lockDir(nil, dir)
}

// LockDirWait waits until the lock on dir can be acquired or ctx is done.
func LockDirWait(ctx context.Context, dir string) (*DirLock, error) {
	return lockDir(ctx, dir)
}

func lockDir(ctx context.Context, dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create server directory")
	}

	l := flock.New(filepath.Join(dir, LockFileName))

	var (
		locked bool
		err    error
	)
	if ctx != nil {
		locked, err = l.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		locked, err = l.TryLock()
	}

	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire lock")
	}

	if !locked {
		return nil, ErrLockedElsewhere
	}

	return &DirLock{l: l}, nil
}

func (d *DirLock) Path() string { return d.l.Path() }

// Unlock releases the lock. The lock file is left behind.
func (d *DirLock) Unlock() error {
	return d.l.Unlock()
}
