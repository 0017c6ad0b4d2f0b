package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Workspace and descriptor errors
	ErrCodeStorage             ErrorCode = "STORAGE_ERROR"
	ErrCodeMissingFile         ErrorCode = "MISSING_FILE"
	ErrCodeMalformedDescriptor ErrorCode = "MALFORMED_DESCRIPTOR"

	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Command execution errors
	ErrCodeCommandTimeout  ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// Supervisor errors
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"
	ErrCodeNotRunning     ErrorCode = "NOT_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// KeeperError represents a structured error with context
type KeeperError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *KeeperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *KeeperError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *KeeperError) WithDetail(key string, value interface{}) *KeeperError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *KeeperError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new KeeperError
func New(code ErrorCode, message string) *KeeperError {
	return &KeeperError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a KeeperError
func Wrap(err error, code ErrorCode, message string) *KeeperError {
	return &KeeperError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether err, or any error it wraps, is a KeeperError with the given code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the code of the outermost KeeperError in err's chain.
func GetCode(err error) ErrorCode {
	for err != nil {
		if keeperErr, ok := err.(*KeeperError); ok {
			return keeperErr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = unwrapper.Unwrap()
	}
	return ""
}

// Detail returns a detail value from the outermost KeeperError in err's chain.
func Detail(err error, key string) (interface{}, bool) {
	for err != nil {
		if keeperErr, ok := err.(*KeeperError); ok {
			v, found := keeperErr.Details[key]
			return v, found
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
