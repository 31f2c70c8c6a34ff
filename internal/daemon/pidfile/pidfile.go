// Package pidfile guards the standalone host against a second instance.
//
// The PID is written next to an advisory lock file. The lock is what makes
// the guard race-free; the PID is only there so `stop` and `status` can find
// the running process.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	reloaderrors "github.com/grovetools/packreload/errors"
	"github.com/grovetools/packreload/pkg/process"
)

// Handle is an acquired pid file. Release it on shutdown.
type Handle struct {
	path string
	lock *flock.Flock
}

// Acquire takes the instance lock and writes the current PID to path.
// It fails with ErrCodeAlreadyRunning if another instance holds the lock.
func Acquire(path string) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		pid, _ := Read(path)
		return nil, reloaderrors.AlreadyRunning(pid)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &Handle{path: path, lock: lock}, nil
}

// Release removes the PID file and drops the lock.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	removeErr := os.Remove(h.path)
	if err := h.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return removeErr
	}
	return nil
}

// Read returns the PID stored in the file.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning checks if the instance described by the pid file is alive.
func IsRunning(path string) (bool, int, error) {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return process.IsProcessAlive(pid), pid, nil
}
