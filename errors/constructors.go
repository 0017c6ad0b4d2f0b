package errors

import (
	"fmt"
	"os/exec"
	"strings"
)

// StorageError reports an unusable workspace directory.
func StorageError(path string, err error) *KeeperError {
	return Wrap(err, ErrCodeStorage, fmt.Sprintf("workspace inaccessible: %s", path)).
		WithDetail("path", path)
}

// MissingFile creates a descriptor-not-found error
func MissingFile(id, path string) *KeeperError {
	return New(ErrCodeMissingFile, fmt.Sprintf("session descriptor not found: %s", id)).
		WithDetail("session", id).
		WithDetail("path", path)
}

// MalformedDescriptor creates an invalid descriptor error
func MalformedDescriptor(id, reason string) *KeeperError {
	return New(ErrCodeMalformedDescriptor, fmt.Sprintf("malformed session descriptor %s: %s", id, reason)).
		WithDetail("session", id)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *KeeperError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *KeeperError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *KeeperError {
	keeperErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		keeperErr = keeperErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return keeperErr
}

// CommandNotFound reports a program the shell could not find or execute.
func CommandNotFound(cmd string, exitCode int, stderr string) *KeeperError {
	return New(ErrCodeCommandNotFound, fmt.Sprintf("program not found: %s", cmd)).
		WithDetail("command", cmd).
		WithDetail("exitCode", exitCode).
		WithDetail("stderr", strings.TrimSpace(stderr))
}

// CommandExited reports an action whose command line exited non-zero.
func CommandExited(cmd string, exitCode int, stderr string) *KeeperError {
	return New(ErrCodeCommandFailed, fmt.Sprintf("command exited with status %d: %s", exitCode, cmd)).
		WithDetail("command", cmd).
		WithDetail("exitCode", exitCode).
		WithDetail("stderr", strings.TrimSpace(stderr))
}

// CommandTimeout creates a command timeout error
func CommandTimeout(cmd string, timeout string) *KeeperError {
	return New(ErrCodeCommandTimeout, fmt.Sprintf("command did not finish within %s: %s", timeout, cmd)).
		WithDetail("command", cmd).
		WithDetail("timeout", timeout)
}

// AlreadyRunning reports a live supervisor holding the pid file.
func AlreadyRunning(pid int, path string) *KeeperError {
	return New(ErrCodeAlreadyRunning, fmt.Sprintf("supervisor already running with PID %d", pid)).
		WithDetail("pid", pid).
		WithDetail("pidFile", path)
}
