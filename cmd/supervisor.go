package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/tunnelkeeper/command"
	"github.com/grovetools/tunnelkeeper/config"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
	"github.com/grovetools/tunnelkeeper/pkg/hostctl"
	"github.com/grovetools/tunnelkeeper/pkg/introspect"
)

// newStore opens the configured workspace.
func newStore(cfg *config.Config) (*descriptor.Store, error) {
	return descriptor.NewStore(cfg.Workspace.Path,
		descriptor.WithMarker(cfg.Workspace.Marker),
		descriptor.WithIgnore(cfg.Workspace.Ignore...),
	)
}

// dialectFor merges configured command lines over the built-in ones. The only
// built-in dialect is Windows; elsewhere every command must be configured.
func dialectFor(cfg *config.Config, goos string) (hostctl.Dialect, error) {
	d := hostctl.Dialect{
		ListProcesses:   cfg.Commands.ListProcesses,
		ListConnections: cfg.Commands.ListConnections,
		Start:           cfg.Commands.Start,
		KillPID:         cfg.Commands.KillPID,
	}
	if goos == "windows" {
		return d.Merge(hostctl.WindowsDialect()), nil
	}

	var missing []string
	for _, c := range []struct{ key, value string }{
		{"commands.list_processes", d.ListProcesses},
		{"commands.list_connections", d.ListConnections},
		{"commands.start", d.Start},
		{"commands.kill_pid", d.KillPID},
	} {
		if strings.TrimSpace(c.value) == "" {
			missing = append(missing, c.key)
		}
	}
	if len(missing) > 0 {
		return hostctl.Dialect{}, errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("no built-in host commands for %s; set %s", goos, strings.Join(missing, ", "))).
			WithDetail("missing", missing)
	}
	return d, nil
}

// newHost builds the host adapter from the configured shell and commands.
func newHost(cfg *config.Config, logger *logrus.Entry) (*hostctl.Host, error) {
	dialect, err := dialectFor(cfg, runtime.GOOS)
	if err != nil {
		return nil, err
	}
	runner := command.NewShellRunner(cfg.Commands.Shell, cfg.Supervisor.CommandTimeout.Std())
	return hostctl.New(runner, dialect, introspect.TextParser{}, logger)
}
