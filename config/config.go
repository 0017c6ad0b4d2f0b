// Package config loads tunnelkeeper.yml (or tunnelkeeper.toml), applies
// environment overrides and defaults, and validates the result.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/paths"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ConfigNames are the file names searched for, in order.
var ConfigNames = []string{
	"tunnelkeeper.yml",
	"tunnelkeeper.yaml",
	"tunnelkeeper.toml",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// coreSections are the top-level keys decoded into Config itself.
var coreSections = map[string]struct{}{
	"workspace":  {},
	"supervisor": {},
	"commands":   {},
}

// Load reads, validates and completes the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, FormatFor(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "failed to load config file").
			WithDetail("path", path)
	}
	cfg.Path = path
	return cfg, nil
}

// LoadDefault loads the configuration found from the working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads the first configuration file found from startDir. When no
// file exists the defaults are used.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, quietLogger())
}

// LoadFromWithLogger is LoadFrom with progress reported to logger.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	path, err := FindConfigFile(startDir)
	if err != nil {
		if !errors.Is(err, errors.ErrCodeConfigNotFound) {
			return nil, err
		}
		logger.WithField("searchPath", startDir).Debug("No configuration file found, using defaults")
		return Defaults()
	}

	logger.WithField("path", path).Debug("Loading configuration")
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(cfg); err == nil {
			logger.Debugf("Effective configuration:\n%s", string(data))
		}
	}
	return cfg, nil
}

// Defaults returns the configuration used when no file exists, with
// environment overrides applied.
func Defaults() (*Config, error) {
	return finish(&Config{})
}

// LoadFromBytes parses configuration data in the given format.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var cfg Config
	switch format {
	case FormatTOML:
		if err := decodeTOML(expanded, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	}

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create validator")
	}
	if err := validator.Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeTOML fills cfg and gathers unknown top-level tables as extensions.
func decodeTOML(data []byte, cfg *Config) error {
	if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
	}

	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
	}
	for key, value := range raw {
		if _, core := coreSections[key]; core {
			continue
		}
		if cfg.Extensions == nil {
			cfg.Extensions = make(map[string]interface{})
		}
		cfg.Extensions[key] = value
	}
	return nil
}

// FormatFor picks the syntax from the file extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// FindConfigFile searches for a configuration file:
// 1. startDir
// 2. the user config directory (~/.config/tunnelkeeper)
func FindConfigFile(startDir string) (string, error) {
	dirs := []string{startDir}
	if dir := paths.ConfigDir(); dir != "" {
		dirs = append(dirs, dir)
	}

	for _, dir := range dirs {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", dirs)
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
