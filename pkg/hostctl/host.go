// Package hostctl observes and controls tunnel client processes through the
// host's own command-line tools.
package hostctl

import (
	"context"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/tunnelkeeper/command"
	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/pkg/descriptor"
	"github.com/grovetools/tunnelkeeper/pkg/introspect"
)

// Host runs dialect command lines and parses what they print.
type Host struct {
	runner  command.Runner
	dialect Dialect
	parser  introspect.Parser
	logger  *logrus.Entry
}

// New creates a Host. A nil parser selects introspect.TextParser and a nil
// logger discards output.
func New(runner command.Runner, dialect Dialect, parser introspect.Parser, logger *logrus.Entry) (*Host, error) {
	if runner == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "runner cannot be nil")
	}
	if err := dialect.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid command dialect")
	}
	if parser == nil {
		parser = introspect.TextParser{}
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Host{runner: runner, dialect: dialect, parser: parser, logger: logger}, nil
}

// Dialect returns the command lines in use.
func (h *Host) Dialect() Dialect {
	return h.dialect
}

// Processes lists running processes whose table line mentions image.
func (h *Host) Processes(ctx context.Context, image string) ([]introspect.ProcessRow, error) {
	line := render(h.dialect.ListProcesses, descriptor.Descriptor{Executable: image}, 0)
	res, err := h.run(ctx, line)
	if err != nil {
		return nil, err
	}
	return slices.Collect(h.parser.ProcessRows(res.Stdout, image)), nil
}

// Connections lists TCP connections to host in any of states. The
// connection table is queried once for all states.
func (h *Host) Connections(ctx context.Context, host string, states ...string) ([]introspect.ConnectionRow, error) {
	res, err := h.run(ctx, h.dialect.ListConnections)
	if err != nil {
		return nil, err
	}
	out := res.Stdout

	var rows []introspect.ConnectionRow
	for _, state := range states {
		rows = append(rows, slices.Collect(h.parser.ConnectionRows(out, host, state))...)
	}
	return rows, nil
}

// Start launches the client described by d, detached and without a window.
// A non-zero exit from the start command is reported as COMMAND_FAILED.
func (h *Host) Start(ctx context.Context, d descriptor.Descriptor) error {
	line := render(h.dialect.Start, d, 0)
	res, err := h.run(ctx, line)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.CommandExited(line, res.ExitCode, res.Stderr)
	}
	return nil
}

// Kill forcibly terminates pid. Killing a process that no longer exists is
// not an error.
func (h *Host) Kill(ctx context.Context, pid int) error {
	if err := command.Validate("pid", strconv.Itoa(pid)); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid pid").WithDetail("pid", pid)
	}
	res, err := h.run(ctx, render(h.dialect.KillPID, descriptor.Descriptor{}, pid))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		h.logger.WithFields(logrus.Fields{"pid": pid, "exitCode": res.ExitCode}).
			Debug("Kill exited non-zero, process likely already gone")
	}
	return nil
}

func (h *Host) run(ctx context.Context, line string) (command.Result, error) {
	log := h.logger.WithField("command", line)
	log.Debug("Running host command")
	res, err := h.runner.Run(ctx, line)
	if res.Stderr != "" {
		log.WithFields(logrus.Fields{"exitCode": res.ExitCode, "stderr": strings.TrimSpace(res.Stderr)}).
			Debug("Host command wrote to stderr")
	}
	if err != nil {
		log.WithError(err).Warn("Host command failed")
		return command.Result{}, err
	}
	return res, nil
}
