package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig  = "CONFIG"
	ErrConnect = "CONNECT" // transport or auth failure reaching a host
	ErrChannel = "CHANNEL" // session is up but a command could not be dispatched
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Host       string // label of the host the error belongs to, if any
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// ConnectError reports that host could not be reached or authenticated.
func ConnectError(host string, err error, suggestion string) *Error {
	return &Error{
		Code:       ErrConnect,
		Message:    fmt.Sprintf("Can't connect to '%s'", host),
		Suggestion: suggestion,
		Host:       host,
		Cause:      err,
	}
}

// ChannelError reports that cmd could not be started on an open session to host.
func ChannelError(host, cmd string, err error) *Error {
	return &Error{
		Code:       ErrChannel,
		Message:    fmt.Sprintf("Couldn't start '%s' on '%s'", cmd, host),
		Suggestion: "The session may have dropped. Remaining commands on this host were not attempted.",
		Host:       host,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Brief returns the message and cause on a single line, for log output.
func (e *Error) Brief() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rexErr *Error
	if errors.As(err, &rexErr) {
		return rexErr.Code == code
	}
	return false
}

// Brief returns a one-line rendering of err. Structured errors use their
// message and cause, anything else falls back to err.Error().
func Brief(err error) string {
	if err == nil {
		return ""
	}
	var rexErr *Error
	if errors.As(err, &rexErr) {
		return rexErr.Brief()
	}
	return err.Error()
}

// ExitError signals that the process should exit with Code without printing
// anything further; the failure has already been reported.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the exit code from an ExitError anywhere in err's chain.
func GetExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
