// Package logging builds the logrus loggers used by every tunnelkeeper
// component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/tunnelkeeper/config"
	"github.com/grovetools/tunnelkeeper/pkg/paths"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	files     = make(map[string]*os.File)
	loggersMu sync.Mutex

	activeConfig *config.Config
)

// SetConfig makes cfg the source of the `logging` section for loggers
// created afterwards. Loggers created before are rebuilt on next use.
func SetConfig(cfg *config.Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	activeConfig = cfg
	resetLocked()
}

// Reset drops every cached logger and closes their log files.
func Reset() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	resetLocked()
}

func resetLocked() {
	loggers = make(map[string]*logrus.Entry)
	for path, f := range files {
		_ = f.Close()
		delete(files, path)
	}
}

// LogFilePath returns the file the supervisor logs to on the given day.
func LogFilePath(cfg Config, now time.Time) string {
	if cfg.File.Path != "" {
		return expandPath(cfg.File.Path)
	}
	dir := paths.LogDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, fmt.Sprintf("tunnelkeeper-%s.log", now.Format("2006-01-02")))
}

// LoadConfig returns the `logging` section of the active configuration.
func LoadConfig() Config {
	loggersMu.Lock()
	cfg := activeConfig
	loggersMu.Unlock()
	return loadConfig(cfg)
}

func loadConfig(cfg *config.Config) Config {
	if cfg == nil {
		loaded, err := config.LoadDefault()
		if err != nil {
			return Config{}
		}
		cfg = loaded
	}
	var logCfg Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
		logrus.Warnf("Failed to parse 'logging' config: %v", err)
	}
	return logCfg
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logCfg := loadConfig(activeConfig)
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("TUNNELKEEPER_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("TUNNELKEEPER_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer
	if !logCfg.File.Disabled {
		if f := openLogFile(LogFilePath(logCfg, time.Now()), logger, logCfg.File.Path != ""); f != nil {
			writers = append(writers, f)
		}
	}
	if shouldLogToStderr(logCfg, logger.GetLevel()) {
		writers = append(writers, ConsoleOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// openLogFile opens path for appending, sharing one handle per path.
// Failures on the default path are silent.
func openLogFile(path string, logger *logrus.Logger, explicit bool) *os.File {
	if path == "" {
		return nil
	}
	if f, ok := files[path]; ok {
		return f
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		if explicit {
			logger.Warnf("Failed to create log directory %s: %v", dir, err)
		}
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		if explicit {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		}
		return nil
	}
	files[path] = f
	return f
}

func shouldLogToStderr(cfg Config, level logrus.Level) bool {
	switch cfg.Format.StructuredToStderr {
	case "always":
		return true
	case "never":
		return false
	}
	// auto: only when debugging or not attached to a terminal
	isDebug := os.Getenv("TUNNELKEEPER_DEBUG") == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
