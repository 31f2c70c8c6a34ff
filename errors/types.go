package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigUnreadable ErrorCode = "CONFIG_UNREADABLE"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"

	// Toolchain errors
	ErrCodeInterpreterUnavailable ErrorCode = "INTERPRETER_UNAVAILABLE"
	ErrCodeCompilerMissing        ErrorCode = "COMPILER_MISSING"
	ErrCodeCompilerVersion        ErrorCode = "COMPILER_VERSION"
	ErrCodeDownloadFailed         ErrorCode = "DOWNLOAD_FAILED"

	// Command execution errors
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"
	ErrCodeCompileFailed   ErrorCode = "COMPILE_FAILED"

	// Host errors
	ErrCodeReloadFailed   ErrorCode = "RELOAD_FAILED"
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// ReloadError represents a structured error with context
type ReloadError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *ReloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ReloadError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *ReloadError) WithDetail(key string, value interface{}) *ReloadError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *ReloadError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new ReloadError
func New(code ErrorCode, message string) *ReloadError {
	return &ReloadError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a ReloadError
func Wrap(err error, code ErrorCode, message string) *ReloadError {
	return &ReloadError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific ReloadError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, walking the Unwrap chain
func GetCode(err error) ErrorCode {
	for err != nil {
		if reloadErr, ok := err.(*ReloadError); ok {
			return reloadErr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = unwrapper.Unwrap()
	}
	return ""
}

// Message returns the operator-facing text of err: the message of the first
// ReloadError in the chain plus its cause, or err.Error() otherwise.
func Message(err error) string {
	for e := err; e != nil; {
		if reloadErr, ok := e.(*ReloadError); ok {
			if reloadErr.Cause != nil {
				return fmt.Sprintf("%s: %v", reloadErr.Message, reloadErr.Cause)
			}
			return reloadErr.Message
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = unwrapper.Unwrap()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
