package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/tunnelkeeper/internal/daemon/engine"
	"github.com/grovetools/tunnelkeeper/logging"
	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
	"github.com/grovetools/tunnelkeeper/pkg/registry"
	"github.com/grovetools/tunnelkeeper/state"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("TUNNELKEEPER_HOME", home)
	t.Setenv("TUNNELKEEPER_WORKSPACE", "")
	t.Cleanup(logging.Reset)
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "stop", "status", "check", "logs", "config", "paths", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestConfigSchemaPrintsJSONSchema(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "schema")
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, out, "poll_interval")
}

func TestConfigShowAppliesWorkspaceFlag(t *testing.T) {
	home := isolate(t)
	ws := filepath.Join(home, "tunnels")

	out, err := execute(t, "config", "show", "--workspace", ws)
	require.NoError(t, err)

	assert.Contains(t, out, "# Source: built-in defaults")
	assert.Contains(t, out, ws)
	assert.Contains(t, out, "poll_interval: 3s")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	home := isolate(t)
	good := filepath.Join(home, "good.yml")
	bad := filepath.Join(home, "bad.yml")
	writeFile(t, good, "supervisor:\n  poll_interval: 5s\n")
	writeFile(t, bad, "supervisor:\n  poll_interval: soon\n")

	out, err := execute(t, "config", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	_, err = execute(t, "config", "validate", bad)
	assert.Error(t, err)
}

func TestStatusReportsStoppedSupervisor(t *testing.T) {
	isolate(t)

	_, err := execute(t, "status", "--json")
	assert.Error(t, err)
}

func TestLogsPrintsTrailingLines(t *testing.T) {
	home := isolate(t)
	logFile := filepath.Join(home, "supervisor.log")
	writeFile(t, logFile, "one\ntwo\nthree\n")
	cfgPath := filepath.Join(home, "tunnelkeeper.yml")
	writeFile(t, cfgPath, "logging:\n  file:\n    path: "+logFile+"\n")

	out, err := execute(t, "logs", "-n", "2", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "two\nthree\n", out)
}

func TestPrintLastLinesZeroPrintsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	writeFile(t, path, "a\nb\n")

	var out bytes.Buffer
	require.NoError(t, printLastLines(&out, path, 0))
	assert.Empty(t, out.String())
}

func TestRenderChecksEmptyWorkspace(t *testing.T) {
	var out bytes.Buffer
	renderChecks(&out, "/srv/tunnels", nil)
	assert.Equal(t, "No session descriptors in /srv/tunnels\n", out.String())
}

func TestRenderChecksTable(t *testing.T) {
	var out bytes.Buffer
	renderChecks(&out, "/srv/tunnels", []SessionCheck{
		{Session: "input_data1.txt", Executable: "kitty.exe", Profile: "prod", Host: "203.0.113.7", Connected: true},
		{Session: "input_data2.txt", Error: "malformed"},
	})

	text := out.String()
	assert.Contains(t, text, "SESSION")
	assert.Contains(t, text, "input_data1.txt")
	assert.Contains(t, text, "connected")
	assert.Contains(t, text, "error: malformed")
}

func TestStatusIncludesSessionsFromStateFile(t *testing.T) {
	home := isolate(t)
	pidPath := filepath.Join(home, "run", "tunnelkeeper.pid")
	writeFile(t, pidPath, strconv.Itoa(os.Getpid()))
	require.NoError(t, state.Save(state.PathFor(pidPath), &state.State{
		SupervisorPID: os.Getpid(),
		UpdatedAt:     time.Now().UTC(),
		Sessions:      []state.Session{{ID: "input_data1.txt", State: "CONNECTED", PID: 4521}},
		Pending:       []string{"input_data5.txt"},
	}))
	cfgPath := filepath.Join(home, "tunnelkeeper.yml")
	writeFile(t, cfgPath, "supervisor:\n  pid_file: "+pidPath+"\n")

	out, err := execute(t, "status", "--json", "--config", cfgPath)
	require.NoError(t, err)

	var status supervisorStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	require.Len(t, status.Sessions, 1)
	assert.Equal(t, 4521, status.Sessions[0].PID)
	assert.Equal(t, []string{"input_data5.txt"}, status.Pending)
}

func TestSnapshotReflectsEngineState(t *testing.T) {
	reg := registry.New([]string{"a", "b"})
	require.True(t, reg.Register(10, "a"))
	eng := engine.New(nil, nil, reg, nil)

	st := snapshot(eng, "/ws", "pass-1", []string{"c"})

	assert.Equal(t, os.Getpid(), st.SupervisorPID)
	assert.Equal(t, "pass-1", st.Pass)
	assert.Equal(t, []state.Session{
		{ID: "a", State: "NEW", PID: 10},
		{ID: "b", State: "NEW"},
	}, st.Sessions)
	assert.Equal(t, []string{"c"}, st.Pending)
}

func TestPendingSessionsTracksAddedDescriptors(t *testing.T) {
	p := newPendingSessions()

	p.track(descriptor.Change{ID: "input_data9.txt", Kind: descriptor.ChangeAdded})
	p.track(descriptor.Change{ID: "input_data4.txt", Kind: descriptor.ChangeAdded})
	p.track(descriptor.Change{ID: "input_data1.txt", Kind: descriptor.ChangeModified})
	assert.Equal(t, []string{"input_data4.txt", "input_data9.txt"}, p.list())

	p.track(descriptor.Change{ID: "input_data9.txt", Kind: descriptor.ChangeRemoved})
	assert.Equal(t, []string{"input_data4.txt"}, p.list())
}
