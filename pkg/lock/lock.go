package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when another deployment holds the lock.
var ErrBusy = errors.New("deployment already in progress")

// Lock is the advisory file lock serializing deployments per app. It is
// flock(2) based, so a crashed process releases it automatically when
// its descriptor closes; stale lock files never wedge the next deploy.
type Lock struct {
	flock *flock.Flock
}

// ForApp returns the deploy lock for one application.
func ForApp(lockDir, app string) *Lock {
	return &Lock{flock: flock.New(filepath.Join(lockDir, app+".lock"))}
}

// Acquire takes the lock without blocking. A held lock is ErrBusy.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("creating lock dir: %w", err)
	}
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring %s: %w", l.flock.Path(), err)
	}
	if !locked {
		return ErrBusy
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
