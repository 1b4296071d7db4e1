package checkmate

import (
	"errors"
	"fmt"
	"strings"
)

// Domain error codes - transport layers map these to HTTP status or exit codes.
const (
	ENOTFOUND     = "not_found"         // 404 - Inspection or item not found
	EINVALIDSTATE = "invalid_state"     // 409 - Operation illegal in the current lifecycle state
	EVALIDATION   = "validation_failed" // 422 - Finalize preconditions not met
	ECONFLICT     = "conflict"          // 409 - Concurrent write detected
	ELOOKUP       = "lookup_failed"     // 502 - External lookup unreachable or errored
	EINVALID      = "invalid"           // 400 - Malformed input
	EINTERNAL     = "internal"          // 500 - Internal error
)

// Error represents an application-specific error.
type Error struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Fields contains field-specific validation errors.
	Fields map[string]string `json:"fields,omitempty"`

	// Missing lists the item identifiers that blocked a finalize, in display order.
	Missing []string `json:"missing,omitempty"`

	// Err is the underlying error (not exposed to clients).
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new application error with a formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an underlying error with application context.
func WrapError(code string, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorWithFields creates an input error with field-specific messages.
func ErrorWithFields(fields map[string]string) *Error {
	return &Error{
		Code:    EINVALID,
		Message: "Invalid input",
		Fields:  fields,
	}
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL if the error is not an *Error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage extracts the user-safe message from an error.
// Returns a generic message if the error is not an *Error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An internal error occurred."
}

// ErrorFields extracts field-specific errors from an input error.
// Returns nil if the error has no field errors.
func ErrorFields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// MissingItems extracts the blocking item identifiers from a validation error.
func MissingItems(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Missing
	}
	return nil
}

// IsErrorCode checks if an error has the specified error code.
func IsErrorCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *Error {
	return Errorf(ENOTFOUND, format, args...)
}

// InvalidState creates a lifecycle state error.
func InvalidState(format string, args ...any) *Error {
	return Errorf(EINVALIDSTATE, format, args...)
}

// ValidationFailed creates a finalize validation error listing every blocking item.
func ValidationFailed(message string, missing []string) *Error {
	return &Error{
		Code:    EVALIDATION,
		Message: fmt.Sprintf("%s: %s", message, strings.Join(missing, ", ")),
		Missing: missing,
	}
}

// Conflict creates a concurrent write error.
func Conflict(format string, args ...any) *Error {
	return Errorf(ECONFLICT, format, args...)
}

// LookupFailed creates an external lookup error, wrapping the underlying cause.
func LookupFailed(message string, err error) *Error {
	return WrapError(ELOOKUP, message, err)
}

// Invalid creates an input error.
func Invalid(format string, args ...any) *Error {
	return Errorf(EINVALID, format, args...)
}

// Internal creates an internal error, wrapping the underlying cause.
func Internal(message string, err error) *Error {
	return WrapError(EINTERNAL, message, err)
}
