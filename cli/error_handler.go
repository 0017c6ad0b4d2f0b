package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/tunnelkeeper/errors"
	"github.com/grovetools/tunnelkeeper/logging"
)

// ErrorHandler turns command errors into a message and a hint.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	detail := func(key string) interface{} {
		v, _ := errors.Detail(err, key)
		return v
	}

	var message, hint string
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		message = fmt.Sprintf("Configuration file not found: %v", detail("path"))
		hint = "Omit --config to run with the defaults."

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		message = fmt.Sprintf("Invalid configuration: %v", err)
		hint = "Run 'tunnelkeeper config validate' for details."

	case errors.ErrCodeStorage:
		message = fmt.Sprintf("%v is not accessible", detail("path"))
		hint = "Check the path and its permissions, or pass --workspace."

	case errors.ErrCodeAlreadyRunning:
		message = fmt.Sprintf("A supervisor is already running (PID %v)", detail("pid"))
		hint = "Stop it with 'tunnelkeeper stop' first."

	case errors.ErrCodeNotRunning:
		message = "No supervisor is running."

	case errors.ErrCodeCommandNotFound:
		message = fmt.Sprintf("Shell %v not found", detail("shell"))
		hint = "Set commands.shell in tunnelkeeper.yml."

	case errors.ErrCodeCommandTimeout:
		message = fmt.Sprintf("Host command did not finish within %v: %v", detail("timeout"), detail("command"))

	default:
		message = fmt.Sprintf("Error: %v", err)
	}

	p := logging.NewPrettyLogger().WithWriter(h.Out)
	p.ErrorPretty(message, nil)
	if hint != "" {
		p.InfoPretty(hint)
	}

	if h.Verbose {
		if keeperErr, ok := err.(*errors.KeeperError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", keeperErr.ToJSON())
		}
	}
	return err
}
