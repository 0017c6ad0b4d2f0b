//go:build !windows

package command

import "os/exec"

func hideWindow(_ *exec.Cmd) {}

func setRawCommandLine(_ *exec.Cmd, _ string) {}
