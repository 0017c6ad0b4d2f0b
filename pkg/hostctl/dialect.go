package hostctl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
)

// Template placeholders.
const (
	PlaceholderPath    = "{path}"
	PlaceholderExe     = "{exe}"
	PlaceholderProfile = "{profile}"
	PlaceholderPID     = "{pid}"
)

// Dialect holds the command lines used to observe and control client
// processes. Values are interpolated into templates after validation by the
// descriptor store.
type Dialect struct {
	ListProcesses   string `yaml:"list_processes" toml:"list_processes" json:"list_processes"`
	ListConnections string `yaml:"list_connections" toml:"list_connections" json:"list_connections"`
	Start           string `yaml:"start" toml:"start" json:"start"`
	KillPID         string `yaml:"kill_pid" toml:"kill_pid" json:"kill_pid"`
}

// WindowsDialect drives the stock Windows tools: tasklist, netstat,
// PowerShell's Start-Process and taskkill.
func WindowsDialect() Dialect {
	return Dialect{
		ListProcesses:   `tasklist /NH /FI "IMAGENAME eq {exe}"`,
		ListConnections: `netstat -ano -p tcp`,
		Start:           `powershell -NoProfile -NonInteractive -Command "Start-Process -WindowStyle Hidden -FilePath '{path}' -ArgumentList '-load {profile}'"`,
		KillPID:         `taskkill /F /PID {pid}`,
	}
}

// Merge returns d with every empty template taken from fallback.
func (d Dialect) Merge(fallback Dialect) Dialect {
	if d.ListProcesses == "" {
		d.ListProcesses = fallback.ListProcesses
	}
	if d.ListConnections == "" {
		d.ListConnections = fallback.ListConnections
	}
	if d.Start == "" {
		d.Start = fallback.Start
	}
	if d.KillPID == "" {
		d.KillPID = fallback.KillPID
	}
	return d
}

// Validate checks that each template carries the placeholders it needs.
func (d Dialect) Validate() error {
	required := []struct {
		name, template string
		placeholders   []string
	}{
		{"list_processes", d.ListProcesses, nil},
		{"list_connections", d.ListConnections, nil},
		{"start", d.Start, []string{PlaceholderPath}},
		{"kill_pid", d.KillPID, []string{PlaceholderPID}},
	}
	for _, r := range required {
		if strings.TrimSpace(r.template) == "" {
			return fmt.Errorf("command %q cannot be empty", r.name)
		}
		for _, p := range r.placeholders {
			if !strings.Contains(r.template, p) {
				return fmt.Errorf("command %q must contain %s", r.name, p)
			}
		}
	}
	return nil
}

func render(template string, d descriptor.Descriptor, pid int) string {
	replacements := []string{
		PlaceholderPath, d.ExecutablePath(),
		PlaceholderExe, d.Executable,
		PlaceholderProfile, d.Profile,
	}
	if pid > 0 {
		replacements = append(replacements, PlaceholderPID, strconv.Itoa(pid))
	}
	return strings.NewReplacer(replacements...).Replace(template)
}
