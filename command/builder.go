package command

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 30 * time.Second

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

// shellMetacharacters are rejected in any value interpolated into a command line.
const shellMetacharacters = ";|&$`<>\"'%^\r\n"

var (
	validExecutable = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._+-]*$`)
	validHostname   = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)*$`)
)

// SafeBuilder builds bounded commands on top of an Executor
type SafeBuilder struct {
	defaultTimeout time.Duration
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		executor:       exec,
	}
}

// validators check values before they are interpolated into a command line.
var validators = map[string]func(string) error{
	"executable": validateExecutable,
	"profile":    validateProfile,
	"host":       validateHost,
	"pid":        validatePID,
}

// Validate checks value with the named validator.
func Validate(argType, value string) error {
	validator, exists := validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}
	return validator(value)
}

// validateExecutable accepts a bare executable file name such as "kitty_portable.exe".
func validateExecutable(name string) error {
	if name == "" {
		return fmt.Errorf("executable name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("executable must be a file name, not a path: %s", name)
	}
	if !validExecutable.MatchString(name) {
		return fmt.Errorf("invalid executable name: %s", name)
	}
	return nil
}

// validateProfile accepts saved connection profile names, which may contain spaces.
func validateProfile(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}
	if strings.ContainsAny(name, shellMetacharacters) {
		return fmt.Errorf("profile name contains invalid characters: %s", name)
	}
	return nil
}

// validateHost accepts an IPv4/IPv6 address or a DNS host name.
func validateHost(host string) error {
	if host == "" {
		return fmt.Errorf("host address cannot be empty")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 || !validHostname.MatchString(host) {
		return fmt.Errorf("invalid host address: %s", host)
	}
	return nil
}

func validatePID(pid string) error {
	n, err := strconv.Atoi(pid)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid pid: %q", pid)
	}
	return nil
}

// Command represents a safe command configuration
type Command struct {
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
	rawLine  string
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, sb.defaultTimeout)

	return &Command{
		parent:   ctx,
		ctx:      timeoutCtx,
		cancel:   cancel,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c.cancel()
	c.ctx, c.cancel = context.WithTimeout(c.parent, timeout)
	c.timeout = timeout
	return c
}

// WithRawCommandLine passes line to the process verbatim on platforms that
// re-quote arguments (Windows), leaving quoting to the callee.
func (c *Command) WithRawCommandLine(line string) *Command {
	c.rawLine = line
	return c
}

// Timeout returns the effective timeout.
func (c *Command) Timeout() time.Duration {
	return c.timeout
}

// Exec creates and returns an exec.Cmd. The caller must call Close once the
// command has finished.
func (c *Command) Exec() *exec.Cmd {
	cmd := c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
	if c.rawLine != "" {
		setRawCommandLine(cmd, c.rawLine)
	}
	return cmd
}

// Capture runs the command and returns what it printed on stdout and stderr.
func (c *Command) Capture() (stdout, stderr string, err error) {
	defer c.Close()
	var outBuf, errBuf bytes.Buffer
	cmd := c.Exec()
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	// Grandchildren may inherit stdout; don't wait on them after a kill.
	cmd.WaitDelay = 500 * time.Millisecond
	err = cmd.Run()
	if c.ctx.Err() == context.DeadlineExceeded {
		err = c.ctx.Err()
	}
	return outBuf.String(), errBuf.String(), err
}

// Close releases the command's timeout context.
func (c *Command) Close() {
	c.cancel()
}
