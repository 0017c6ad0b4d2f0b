// Package descriptor reads session descriptors from the supervisor workspace.
//
// A descriptor is a plain text file whose name contains the workspace marker
// (by default "input_data"). Its first three non-empty lines name the tunnel
// client executable, the saved connection profile it should load, and the
// target host address. Anything after that is ignored.
package descriptor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grovetools/tunnelkeeper/command"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/moby/patternmatcher"
)

// DefaultMarker identifies session descriptor files within the workspace.
const DefaultMarker = "input_data"

// Descriptor is a parsed session descriptor.
type Descriptor struct {
	// ID is the descriptor's file name within the workspace.
	ID         string `json:"id" yaml:"id"`
	Executable string `json:"executable" yaml:"executable"`
	Profile    string `json:"profile" yaml:"profile"`
	Host       string `json:"host" yaml:"host"`
	// Dir is the workspace directory the descriptor was read from.
	Dir string `json:"dir" yaml:"dir"`
}

// ExecutablePath resolves the client executable inside the workspace.
func (d Descriptor) ExecutablePath() string {
	return filepath.Join(d.Dir, d.Executable)
}

// Store enumerates and loads descriptors from a workspace directory.
type Store struct {
	dir    string
	marker string
	ignore *patternmatcher.PatternMatcher
}

// Option configures a Store.
type Option func(*Store) error

// WithMarker overrides the file name marker.
func WithMarker(marker string) Option {
	return func(s *Store) error {
		if marker == "" {
			return fmt.Errorf("descriptor marker cannot be empty")
		}
		s.marker = marker
		return nil
	}
}

// WithIgnore skips descriptor files whose names match any of the patterns.
func WithIgnore(patterns ...string) Option {
	return func(s *Store) error {
		if len(patterns) == 0 {
			return nil
		}
		pm, err := patternmatcher.New(patterns)
		if err != nil {
			return fmt.Errorf("invalid ignore pattern: %w", err)
		}
		s.ignore = pm
		return nil
	}
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, marker: DefaultMarker}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid descriptor store option")
		}
	}
	return s, nil
}

// Dir returns the workspace directory.
func (s *Store) Dir() string {
	return s.dir
}

// Marker returns the file name marker.
func (s *Store) Marker() string {
	return s.marker
}

// Path returns the file path of the descriptor with the given id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id)
}

// IsDescriptor reports whether a file name would be picked up by Scan.
func (s *Store) IsDescriptor(name string) bool {
	if !strings.Contains(name, s.marker) {
		return false
	}
	if s.ignore != nil {
		if ignored, err := s.ignore.MatchesOrParentMatches(name); err == nil && ignored {
			return false
		}
	}
	return true
}

// Scan creates the workspace if needed and returns the ids of every
// descriptor in it, sorted by name.
func (s *Store) Scan() ([]string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, errors.StorageError(s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.StorageError(s.dir, err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if s.IsDescriptor(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads and validates the descriptor with the given id.
func (s *Store) Load(id string) (Descriptor, error) {
	path := s.Path(id)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptor{}, errors.MissingFile(id, path)
		}
		return Descriptor{}, errors.Wrap(err, errors.ErrCodeMissingFile, "failed to open session descriptor").
			WithDetail("session", id).
			WithDetail("path", path)
	}
	defer file.Close()

	var fields []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() && len(fields) < 3 {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			fields = append(fields, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return Descriptor{}, errors.Wrap(err, errors.ErrCodeMalformedDescriptor, "failed to read session descriptor").
			WithDetail("session", id)
	}
	if len(fields) < 3 {
		return Descriptor{}, errors.MalformedDescriptor(id,
			fmt.Sprintf("expected executable, profile and host lines, found %d", len(fields))).
			WithDetail("lines", len(fields))
	}

	d := Descriptor{
		ID:         id,
		Executable: fields[0],
		Profile:    fields[1],
		Host:       fields[2],
		Dir:        s.dir,
	}
	if err := validate(d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// validate rejects values that cannot be interpolated into a command line.
func validate(d Descriptor) error {
	checks := []struct {
		field, argType, value string
	}{
		{"executable", "executable", d.Executable},
		{"profile", "profile", d.Profile},
		{"host", "host", d.Host},
	}
	for _, c := range checks {
		if err := command.Validate(c.argType, c.value); err != nil {
			return errors.MalformedDescriptor(d.ID, err.Error()).WithDetail("field", c.field)
		}
	}
	return nil
}
