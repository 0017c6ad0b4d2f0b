// Package pidfile provides the supervisor lock: a file holding the pid of the
// running supervisor.
package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/process"
)

// Acquire writes the current PID to the file.
// It returns an ALREADY_RUNNING error if another live supervisor holds it.
func Acquire(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to create pid directory").
			WithDetail("path", filepath.Dir(path))
	}

	if pid, err := Read(path); err == nil {
		if pid != os.Getpid() && process.IsProcessAlive(pid) {
			return errors.AlreadyRunning(pid, path)
		}
		// Stale file
		_ = os.Remove(path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to write pid file").
			WithDetail("path", path)
	}
	return nil
}

// Release removes the PID file if it still belongs to this process.
func Release(path string) error {
	pid, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read returns the PID stored in the file.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

// IsRunning checks if the supervisor described by the pidfile is active.
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
