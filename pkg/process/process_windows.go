//go:build windows

package process

import "os"

// IsProcessAlive checks if a process with the given PID is still running.
// On Windows FindProcess opens a handle and fails for unknown pids.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

// Windows has no SIGTERM for console-less processes.
func terminate(p *os.Process) error {
	return p.Kill()
}
