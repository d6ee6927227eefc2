//go:build darwin || linux || freebsd

package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// LockFileName is held with flock by the process that owns the index.
const LockFileName = ".lock"

type processLock struct {
	file *os.File
}

// acquireLock takes an exclusive, non-blocking flock on dir/.lock.
func acquireLock(dir string) (*processLock, error) {
	path := filepath.Join(dir, LockFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("index %s is in use by another process: %w", dir, ErrInvalidState)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &processLock{file: f}, nil
}

func (l *processLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
