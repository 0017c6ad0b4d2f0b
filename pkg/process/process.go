// Package process inspects and signals processes by pid.
package process

import (
	"fmt"
	"os"
)

// Terminate asks the process with the given pid to shut down.
func Terminate(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return terminate(p)
}
