//go:build !windows

package process

import (
	"os"
	"syscall"
)

// IsProcessAlive checks if a process with the given PID is still running.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// FindProcess never fails on Unix.
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks existence; EPERM means alive but owned by someone else.
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
