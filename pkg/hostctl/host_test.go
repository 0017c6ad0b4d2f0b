package hostctl

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/tunnelkeeper/command"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
	"github.com/grovetools/tunnelkeeper/pkg/introspect"
)

const netstatOutput = `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    192.168.1.10:50101     10.0.0.5:22            ESTABLISHED     4521
  TCP    192.168.1.10:50102     10.0.0.5:22            SYN_SENT        4902
  TCP    192.168.1.10:50103     10.0.0.5:22            TIME_WAIT       0
  TCP    192.168.1.10:50104     10.0.0.50:22           ESTABLISHED     4630
`

const tasklistOutput = `
agentX.exe                    4521 Console                    1     12,304 K
agentX.exe                    4902 Console                    1     11,020 K
`

type fakeRunner struct {
	mu      sync.Mutex
	lines   []string
	outputs map[string]string
	exits   map[string]command.Result
	err     error
}

func (f *fakeRunner) Run(_ context.Context, line string) (command.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
	if f.err != nil {
		return command.Result{}, f.err
	}
	for prefix, res := range f.exits {
		if strings.HasPrefix(line, prefix) {
			return res, nil
		}
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(line, prefix) {
			return command.Result{Stdout: out}, nil
		}
	}
	return command.Result{}, nil
}

func newTestHost(t *testing.T, runner *fakeRunner) *Host {
	t.Helper()
	h, err := New(runner, WindowsDialect(), nil, nil)
	require.NoError(t, err)
	return h
}

func TestProcessesRendersImageFilter(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"tasklist": tasklistOutput}}
	h := newTestHost(t, runner)

	rows, err := h.Processes(context.Background(), "agentX.exe")
	require.NoError(t, err)

	assert.Equal(t, []string{`tasklist /NH /FI "IMAGENAME eq agentX.exe"`}, runner.lines)
	require.Len(t, rows, 2)
	assert.Equal(t, 4521, rows[0].PID)
	assert.Equal(t, 4902, rows[1].PID)
}

func TestConnectionsQueriesOnceForAllStates(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"netstat": netstatOutput}}
	h := newTestHost(t, runner)

	rows, err := h.Connections(context.Background(), "10.0.0.5", introspect.LiveStates...)
	require.NoError(t, err)

	assert.Len(t, runner.lines, 1)
	var pids []int
	for _, r := range rows {
		pids = append(pids, r.PID)
	}
	assert.ElementsMatch(t, []int{4521, 4902}, pids)
}

func TestStartRendersDescriptor(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestHost(t, runner)

	d := descriptor.Descriptor{ID: "input_data1.txt", Executable: "agentX.exe", Profile: "profileA", Host: "10.0.0.5", Dir: "ws"}
	require.NoError(t, h.Start(context.Background(), d))

	require.Len(t, runner.lines, 1)
	assert.Contains(t, runner.lines[0], "Start-Process")
	assert.Contains(t, runner.lines[0], d.ExecutablePath())
	assert.Contains(t, runner.lines[0], "-load profileA")
}

func TestStartReportsNonZeroExit(t *testing.T) {
	runner := &fakeRunner{exits: map[string]command.Result{
		"powershell": {Stderr: "Start-Process : This command cannot be run\n", ExitCode: 1},
	}}
	h := newTestHost(t, runner)

	d := descriptor.Descriptor{ID: "input_data1.txt", Executable: "agentX.exe", Profile: "profileA", Host: "10.0.0.5", Dir: "ws"}
	err := h.Start(context.Background(), d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandFailed), "got %v", err)
	code, _ := errors.Detail(err, "exitCode")
	assert.Equal(t, 1, code)
	stderr, _ := errors.Detail(err, "stderr")
	assert.Equal(t, "Start-Process : This command cannot be run", stderr)
}

func TestKillIgnoresNonZeroExit(t *testing.T) {
	runner := &fakeRunner{exits: map[string]command.Result{
		"taskkill": {Stderr: "ERROR: The process \"4521\" not found.", ExitCode: 128},
	}}
	h := newTestHost(t, runner)

	assert.NoError(t, h.Kill(context.Background(), 4521))
}

func TestKill(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestHost(t, runner)

	require.NoError(t, h.Kill(context.Background(), 4521))
	assert.Equal(t, []string{"taskkill /F /PID 4521"}, runner.lines)

	err := h.Kill(context.Background(), 0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Len(t, runner.lines, 1)
}

func TestRunnerErrorsPropagate(t *testing.T) {
	runner := &fakeRunner{err: errors.CommandTimeout("netstat -ano -p tcp", "30s")}
	h := newTestHost(t, runner)

	rows, err := h.Connections(context.Background(), "10.0.0.5", introspect.StateEstablished)
	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandTimeout))
}

func TestNewRejectsInvalidDialect(t *testing.T) {
	d := WindowsDialect()
	d.KillPID = "taskkill /F"

	_, err := New(&fakeRunner{}, d, nil, nil)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))

	_, err = New(nil, WindowsDialect(), nil, nil)
	assert.Error(t, err)
}

func TestDialectMergeFillsEmptyTemplates(t *testing.T) {
	custom := Dialect{ListConnections: "ss -tanp"}
	merged := custom.Merge(WindowsDialect())

	assert.Equal(t, "ss -tanp", merged.ListConnections)
	assert.Equal(t, WindowsDialect().KillPID, merged.KillPID)
	assert.NoError(t, merged.Validate())
}
