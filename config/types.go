package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

//go:generate sh -c "cd .. && go run ./tools/schema-generator/"

// Config is the root of tunnelkeeper.yml.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace,omitempty" toml:"workspace,omitempty" json:"workspace,omitempty" jsonschema:"description=Where session descriptors live"`
	Supervisor SupervisorConfig `yaml:"supervisor,omitempty" toml:"supervisor,omitempty" json:"supervisor,omitempty" jsonschema:"description=Reconciliation loop timing and locking"`
	Commands   CommandsConfig   `yaml:"commands,omitempty" toml:"commands,omitempty" json:"commands,omitempty" jsonschema:"description=Host command lines used to observe and control clients"`

	// Extensions holds every other top-level section, decoded on demand
	// with UnmarshalExtension.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`

	// Path is the file the configuration was loaded from, empty for defaults.
	Path string `yaml:"-" toml:"-" json:"-" jsonschema:"-"`
}

// WorkspaceConfig locates session descriptors.
type WorkspaceConfig struct {
	Path   string   `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Workspace directory holding descriptors and client executables"`
	Marker string   `yaml:"marker,omitempty" toml:"marker,omitempty" json:"marker,omitempty" jsonschema:"description=Substring that marks a file as a session descriptor (default: input_data)"`
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" json:"ignore,omitempty" jsonschema:"description=Patterns of descriptor files to skip"`
}

// SupervisorConfig tunes the reconciliation loop.
type SupervisorConfig struct {
	PollInterval   Duration `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"description=Pause between reconciliation passes (default: 3s)"`
	LaunchGrace    Duration `yaml:"launch_grace,omitempty" toml:"launch_grace,omitempty" json:"launch_grace,omitempty" jsonschema:"description=Wait after starting a client before looking for its connection (default: 3s)"`
	CommandTimeout Duration `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty" json:"command_timeout,omitempty" jsonschema:"description=Upper bound for a single host command (default: 30s)"`
	PidFile        string   `yaml:"pid_file,omitempty" toml:"pid_file,omitempty" json:"pid_file,omitempty" jsonschema:"description=Supervisor lock file"`
}

// CommandsConfig overrides the host command lines. On Windows empty values
// keep the built-in commands; other platforms have none and must set all four.
type CommandsConfig struct {
	Shell           []string `yaml:"shell,omitempty" toml:"shell,omitempty" json:"shell,omitempty" jsonschema:"description=Shell and flags that interpret each command line"`
	ListProcesses   string   `yaml:"list_processes,omitempty" toml:"list_processes,omitempty" json:"list_processes,omitempty" jsonschema:"description=Lists processes; {exe} is the client executable name"`
	ListConnections string   `yaml:"list_connections,omitempty" toml:"list_connections,omitempty" json:"list_connections,omitempty" jsonschema:"description=Prints the TCP connection table"`
	Start           string   `yaml:"start,omitempty" toml:"start,omitempty" json:"start,omitempty" jsonschema:"description=Starts a client hidden; {path} and {profile} are substituted"`
	KillPID         string   `yaml:"kill_pid,omitempty" toml:"kill_pid,omitempty" json:"kill_pid,omitempty" jsonschema:"description=Forcibly terminates {pid}"`
}

// Duration is a time.Duration written as a Go duration string ("3s", "1m30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// JSONSchema describes Duration as a duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 3s or 1m30s",
	}
}

// UnmarshalExtension decodes a top-level section that is not part of the
// core configuration into target, which must be a pointer. A missing section
// leaves target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}
	return nil
}
