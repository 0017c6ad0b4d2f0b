package config

import (
	"github.com/kelseyhightower/envconfig"

	"github.com/grovetools/tunnelkeeper/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TUNNELKEEPER"

// envOverrides are read from TUNNELKEEPER_* variables. Durations are kept
// as strings so an unset variable is distinguishable from zero.
type envOverrides struct {
	Workspace      string `split_words:"true"`
	PollInterval   string `split_words:"true"`
	LaunchGrace    string `split_words:"true"`
	CommandTimeout string `split_words:"true"`
	PidFile        string `split_words:"true"`
}

// ApplyEnv overlays TUNNELKEEPER_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read environment overrides")
	}

	if env.Workspace != "" {
		c.Workspace.Path = env.Workspace
	}
	if env.PidFile != "" {
		c.Supervisor.PidFile = env.PidFile
	}

	durations := []struct {
		key    string
		value  string
		target *Duration
	}{
		{"POLL_INTERVAL", env.PollInterval, &c.Supervisor.PollInterval},
		{"LAUNCH_GRACE", env.LaunchGrace, &c.Supervisor.LaunchGrace},
		{"COMMAND_TIMEOUT", env.CommandTimeout, &c.Supervisor.CommandTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if err := d.target.UnmarshalText([]byte(d.value)); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid environment override").
				WithDetail("variable", EnvPrefix+"_"+d.key)
		}
	}
	return nil
}
