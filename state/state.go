// Package state persists the supervisor's view of its sessions so that other
// commands can report it while the supervisor runs.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the state file kept next to the supervisor pid file.
const FileName = "sessions.yml"

// Session is the last observed state of one declared session.
type Session struct {
	ID    string `yaml:"id" json:"id"`
	State string `yaml:"state" json:"state"`
	PID   int    `yaml:"pid,omitempty" json:"pid,omitempty"`
}

// State is the snapshot written after each reconciliation pass.
type State struct {
	SupervisorPID int       `yaml:"supervisor_pid" json:"supervisor_pid"`
	Workspace     string    `yaml:"workspace" json:"workspace"`
	Pass          string    `yaml:"pass,omitempty" json:"pass,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updated_at"`
	Sessions      []Session `yaml:"sessions" json:"sessions"`
	// Pending lists descriptors added since startup; they are supervised
	// after the next restart.
	Pending []string `yaml:"pending,omitempty" json:"pending,omitempty"`
}

// PathFor returns the state file path belonging to pidFile.
func PathFor(pidFile string) string {
	return filepath.Join(filepath.Dir(pidFile), FileName)
}

// Load reads the state file. A missing file yields an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &st, nil
}

// Save writes st to path, replacing the previous file atomically.
func Save(path string, st *State) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Remove deletes the state file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
