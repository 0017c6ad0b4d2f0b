package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/tunnelkeeper/config"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/hostctl"
)

func TestDialectForWindowsFillsBuiltins(t *testing.T) {
	cfg := &config.Config{Commands: config.CommandsConfig{ListConnections: "netstat -ano"}}

	d, err := dialectFor(cfg, "windows")
	require.NoError(t, err)
	assert.Equal(t, "netstat -ano", d.ListConnections)
	assert.Equal(t, hostctl.WindowsDialect().ListProcesses, d.ListProcesses)
	assert.Equal(t, hostctl.WindowsDialect().KillPID, d.KillPID)
}

func TestDialectForOtherPlatformsRequiresCommands(t *testing.T) {
	cfg := &config.Config{Commands: config.CommandsConfig{ListConnections: "ss -tanp"}}

	_, err := dialectFor(cfg, "linux")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation), "got %v", err)
	assert.Contains(t, err.Error(), "commands.list_processes")
	assert.Contains(t, err.Error(), "commands.kill_pid")
	assert.NotContains(t, err.Error(), "commands.list_connections")

	missing, ok := errors.Detail(err, "missing")
	require.True(t, ok)
	assert.Equal(t, []string{"commands.list_processes", "commands.start", "commands.kill_pid"}, missing)
}

func TestDialectForOtherPlatformsUsesConfiguredCommands(t *testing.T) {
	cfg := &config.Config{Commands: config.CommandsConfig{
		ListProcesses:   "ps -eo comm,pid",
		ListConnections: "ss -tanp",
		Start:           "nohup {path} -load {profile} &",
		KillPID:         "kill -9 {pid}",
	}}

	d, err := dialectFor(cfg, "darwin")
	require.NoError(t, err)
	assert.Equal(t, "kill -9 {pid}", d.KillPID)
	assert.NoError(t, d.Validate())
}
