package command

import (
	"context"
	stderrors "errors"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/grovetools/tunnelkeeper/errors"
)

// Result is what a command line printed and how it exited.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a single command line. An ordinary non-zero exit is
// reported in Result, not as an error: listing commands such as findstr exit
// non-zero on "no match" and their text is still the answer. Errors are kept
// for failures the runner can tell apart: timeouts, cancellation, and a
// shell or program that could not be found.
type Runner interface {
	Run(ctx context.Context, commandLine string) (Result, error)
}

// notFoundExitCodes are the statuses shells use for an unknown or
// non-executable program: 126 and 127 for sh, 9009 for cmd.exe.
var notFoundExitCodes = map[int]bool{126: true, 127: true, 9009: true}

// DefaultShell returns the shell used to interpret command lines on this platform.
func DefaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd.exe", "/C"}
	}
	return []string{"sh", "-c"}
}

// ShellRunner runs command lines through a shell with a per-command timeout.
type ShellRunner struct {
	builder *SafeBuilder
	shell   []string
	timeout time.Duration
}

// NewShellRunner creates a ShellRunner. An empty shell selects DefaultShell.
func NewShellRunner(shell []string, timeout time.Duration) *ShellRunner {
	return NewShellRunnerWithBuilder(NewSafeBuilder(), shell, timeout)
}

// NewShellRunnerWithBuilder creates a ShellRunner on top of an existing builder.
func NewShellRunnerWithBuilder(builder *SafeBuilder, shell []string, timeout time.Duration) *ShellRunner {
	if len(shell) == 0 {
		shell = DefaultShell()
	}
	return &ShellRunner{
		builder: builder,
		shell:   shell,
		timeout: timeout,
	}
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, commandLine string) (Result, error) {
	if strings.TrimSpace(commandLine) == "" {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "command line cannot be empty")
	}

	args := append(append([]string{}, r.shell[1:]...), commandLine)
	cmd, err := r.builder.Build(ctx, r.shell[0], args...)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to build command")
	}
	if r.timeout > 0 {
		cmd = cmd.WithTimeout(r.timeout)
	}
	if runtime.GOOS == "windows" {
		cmd = cmd.WithRawCommandLine(strings.Join(append(append([]string{}, r.shell...), commandLine), " "))
	}

	stdout, stderr, err := cmd.Capture()
	res := Result{Stdout: stdout, Stderr: stderr}
	if err == nil {
		return res, nil
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return res, errors.CommandTimeout(commandLine, cmd.Timeout().String())
	case stderrors.Is(err, exec.ErrNotFound):
		return res, errors.Wrap(err, errors.ErrCodeCommandNotFound, "shell not found").
			WithDetail("shell", r.shell[0])
	case ctx.Err() != nil:
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if !stderrors.As(err, &exitErr) {
		return res, errors.CommandFailed(commandLine, err).WithDetail("stderr", strings.TrimSpace(stderr))
	}
	res.ExitCode = exitErr.ExitCode()
	if notFoundExitCodes[res.ExitCode] {
		return res, errors.CommandNotFound(commandLine, res.ExitCode, stderr)
	}
	return res, nil
}
