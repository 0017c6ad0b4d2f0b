package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/moby/patternmatcher"

	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/paths"
)

// Built-in defaults.
const (
	DefaultMarker         = "input_data"
	DefaultPollInterval   = 3 * time.Second
	DefaultLaunchGrace    = 3 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Workspace.Path == "" {
		c.Workspace.Path = paths.DefaultWorkspace()
	}
	if c.Workspace.Marker == "" {
		c.Workspace.Marker = DefaultMarker
	}
	if c.Supervisor.PollInterval == 0 {
		c.Supervisor.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Supervisor.LaunchGrace == 0 {
		c.Supervisor.LaunchGrace = Duration(DefaultLaunchGrace)
	}
	if c.Supervisor.CommandTimeout == 0 {
		c.Supervisor.CommandTimeout = Duration(DefaultCommandTimeout)
	}
	if c.Supervisor.PidFile == "" {
		c.Supervisor.PidFile = paths.PidFilePath()
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workspace.Path) == "" {
		return errors.New(errors.ErrCodeConfigValidation, "workspace.path cannot be empty")
	}
	if strings.TrimSpace(c.Workspace.Marker) == "" {
		return errors.New(errors.ErrCodeConfigValidation, "workspace.marker cannot be empty")
	}
	if _, err := patternmatcher.New(c.Workspace.Ignore); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid workspace.ignore pattern").
			WithDetail("patterns", c.Workspace.Ignore)
	}

	durations := []struct {
		name  string
		value Duration
	}{
		{"supervisor.poll_interval", c.Supervisor.PollInterval},
		{"supervisor.command_timeout", c.Supervisor.CommandTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be positive", d.name)).
				WithDetail("value", d.value.String())
		}
	}
	if c.Supervisor.LaunchGrace < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "supervisor.launch_grace cannot be negative").
			WithDetail("value", c.Supervisor.LaunchGrace.String())
	}

	return validateCommands(&c.Commands)
}

func validateCommands(cmds *CommandsConfig) error {
	required := []struct {
		name, template, placeholder string
	}{
		{"commands.start", cmds.Start, "{path}"},
		{"commands.kill_pid", cmds.KillPID, "{pid}"},
	}
	for _, r := range required {
		if r.template != "" && !strings.Contains(r.template, r.placeholder) {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must contain %s", r.name, r.placeholder)).
				WithDetail("command", r.template)
		}
	}
	for _, part := range cmds.Shell {
		if strings.TrimSpace(part) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "commands.shell cannot contain empty entries")
		}
	}
	return nil
}
