package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grovetools/tunnelkeeper/errors"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Workspace.Path = "/srv/tunnels"
	cfg.SetDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty marker", func(c *Config) { c.Workspace.Marker = " " }, true},
		{"negative poll interval", func(c *Config) { c.Supervisor.PollInterval = Duration(-time.Second) }, true},
		{"zero launch grace allowed", func(c *Config) { c.Supervisor.LaunchGrace = 0 }, false},
		{"negative launch grace", func(c *Config) { c.Supervisor.LaunchGrace = Duration(-time.Second) }, true},
		{"start without path", func(c *Config) { c.Commands.Start = "run {profile}" }, true},
		{"custom start", func(c *Config) { c.Commands.Start = "nohup {path} -load {profile} &" }, false},
		{"empty shell entry", func(c *Config) { c.Commands.Shell = []string{"bash", ""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	assert.NoError(t, d.UnmarshalText([]byte(" 1m30s ")))
	assert.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("3")))
}
