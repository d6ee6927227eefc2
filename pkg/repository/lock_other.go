//go:build !(darwin || linux || freebsd)

package repository

// LockFileName is unused on platforms without flock.
const LockFileName = ".lock"

type processLock struct{}

// acquireLock is a no-op where flock is unavailable; a single owning
// process is then the caller's responsibility.
func acquireLock(string) (*processLock, error) { return &processLock{}, nil }

func (l *processLock) release() error { return nil }
