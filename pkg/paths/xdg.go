// Package paths provides XDG-compliant path resolution for tunnelkeeper.
//
// Resolution order:
// 1. TUNNELKEEPER_HOME (portable root) → $TUNNELKEEPER_HOME/{config,data,state}
// 2. XDG env vars → $XDG_*_HOME/tunnelkeeper
// 3. Platform defaults → ~/.config/tunnelkeeper, ~/.local/share/tunnelkeeper, etc.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "tunnelkeeper"

// WindowsWorkspace is the workspace used on Windows when none is configured.
const WindowsWorkspace = `C:\turnneling_workspace\`

func baseDir(portable, xdgEnv string, fallback ...string) string {
	if home := os.Getenv("TUNNELKEEPER_HOME"); home != "" {
		return filepath.Join(home, portable)
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir returns the configuration directory, searched for tunnelkeeper.yml.
func ConfigDir() string {
	return baseDir("config", "XDG_CONFIG_HOME", ".config")
}

// DataDir returns the data directory.
func DataDir() string {
	return baseDir("data", "XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the state directory. Used for runtime state and logs.
func StateDir() string {
	return baseDir("state", "XDG_STATE_HOME", ".local", "state")
}

// LogDir returns the directory holding supervisor log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// PidFilePath returns the path to the supervisor PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), appName+".pid")
}

// DefaultWorkspace returns the workspace directory used when none is configured.
func DefaultWorkspace() string {
	if runtime.GOOS == "windows" && os.Getenv("TUNNELKEEPER_HOME") == "" {
		return WindowsWorkspace
	}
	data := DataDir()
	if data == "" {
		return "workspace"
	}
	return filepath.Join(data, "workspace")
}

// EnsureDirs creates the tunnelkeeper directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
