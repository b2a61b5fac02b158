package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID     = "invalid"     // Invalid input or validation failure
	ENOTFOUND    = "not_found"   // Resource not found
	ECONFLICT    = "conflict"    // Resource conflict (e.g., duplicate)
	EQUOTA       = "quota"       // Plan quota exhausted
	ECANCELLED   = "cancelled"   // Request cancelled by the caller
	EGENERATION  = "generation"  // Content generation failed after retries
	ETIMEOUT     = "timeout"     // Generation attempt timed out
	ERENDER      = "render"      // PDF rendering failed
	EUNAVAILABLE = "unavailable" // Backing store temporarily unavailable
	EINTERNAL    = "internal"    // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "worksheet.generate")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
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

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with key %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// QuotaExceeded creates a quota error carrying current usage against the
// total allowance. Distinct from EINTERNAL so callers can render an
// upgrade prompt instead of a generic failure.
func QuotaExceeded(op string, kind ResourceKind, used, allowed int) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("%s quota exceeded: %d of %d used this period", kind, used, allowed),
	}
}

// Cancelled creates a cancellation error. Cancellations are never retried
// and never consume quota.
func Cancelled(op string) *Error {
	return &Error{
		Code:    ECANCELLED,
		Op:      op,
		Message: "request cancelled",
	}
}

// GenerationFailed wraps the last attempt error after retries are exhausted.
func GenerationFailed(err error, op string, attempts int) *Error {
	return &Error{
		Code:    EGENERATION,
		Op:      op,
		Message: fmt.Sprintf("content generation failed after %d attempts", attempts),
		Err:     err,
	}
}

// Unavailable marks a backing-store read failure. It must never be
// collapsed into "zero usage" by quota accounting.
func Unavailable(err error, op, message string) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RenderFailed wraps a PDF renderer failure.
func RenderFailed(err error, op string) *Error {
	return &Error{
		Code:    ERENDER,
		Op:      op,
		Message: "PDF rendering failed",
		Err:     err,
	}
}
