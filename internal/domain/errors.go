package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies session-level failures.
type ErrorCode string

const (
	ErrPermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrDeviceNotFound    ErrorCode = "DEVICE_NOT_FOUND"
	ErrTransport         ErrorCode = "TRANSPORT"
	ErrAgentStart        ErrorCode = "AGENT_START"
	ErrAgentStop         ErrorCode = "AGENT_STOP"
	ErrNoPersona         ErrorCode = "NO_PERSONA"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrOperationInFlight ErrorCode = "OPERATION_IN_FLIGHT"
	ErrMediaFailure      ErrorCode = "MEDIA_FAILURE"
)

// Error is a structured error carrying a code and optional cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// CodeOf extracts the error code from an error chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// AsError converts any error into an *Error, wrapping foreign errors
// under the given fallback code.
func AsError(err error, fallback ErrorCode) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: fallback, Message: err.Error(), Cause: err}
}
