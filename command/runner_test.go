//go:build !windows

package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunner_CapturesStdout(t *testing.T) {
	r := NewShellRunner(nil, 5*time.Second)

	res, err := r.Run(context.Background(), "echo 'TCP 10.0.0.1:50000 10.0.0.5:22 ESTABLISHED 4521'")
	require.NoError(t, err)
	assert.Equal(t, "TCP 10.0.0.1:50000 10.0.0.5:22 ESTABLISHED 4521", strings.TrimSpace(res.Stdout))
	assert.Equal(t, 0, res.ExitCode)
}

func TestShellRunner_ReportsExitStatus(t *testing.T) {
	r := NewShellRunner(nil, 5*time.Second)

	res, err := r.Run(context.Background(), "echo partial; echo oops >&2; exit 1")
	require.NoError(t, err)
	assert.Equal(t, "partial", strings.TrimSpace(res.Stdout))
	assert.Equal(t, "oops", strings.TrimSpace(res.Stderr))
	assert.Equal(t, 1, res.ExitCode)
}

func TestShellRunner_UnknownProgram(t *testing.T) {
	r := NewShellRunner(nil, 5*time.Second)

	res, err := r.Run(context.Background(), "definitely-not-a-command-xyz --flag")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandNotFound), "got %v", err)
	assert.Equal(t, 127, res.ExitCode)

	code, ok := errors.Detail(err, "exitCode")
	require.True(t, ok)
	assert.Equal(t, 127, code)
	stderr, ok := errors.Detail(err, "stderr")
	require.True(t, ok)
	assert.Contains(t, stderr, "definitely-not-a-command-xyz")
}

func TestShellRunner_NotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a script\n"), 0o644))
	r := NewShellRunner(nil, 5*time.Second)

	res, err := r.Run(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandNotFound), "got %v", err)
	assert.Equal(t, 126, res.ExitCode)
}

func TestShellRunner_Timeout(t *testing.T) {
	r := NewShellRunner(nil, 100*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 10")
	duration := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandTimeout), "got %v", err)
	// Allow some margin for execution overhead
	assert.Less(t, duration, 2*time.Second)
}

func TestShellRunner_MissingShell(t *testing.T) {
	r := NewShellRunner([]string{"definitely-not-a-shell-xyz", "-c"}, time.Second)

	_, err := r.Run(context.Background(), "echo hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandNotFound), "got %v", err)
}

func TestShellRunner_EmptyLine(t *testing.T) {
	r := NewShellRunner(nil, time.Second)

	_, err := r.Run(context.Background(), "   ")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
