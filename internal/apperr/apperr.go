// Package apperr classifies errors raised by the order pipeline so the
// transport can map them to a status code and a client-facing message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds.
const (
	KindValidation        = "validation"
	KindNotFound          = "not_found"
	KindOTPInvalid        = "otp_invalid"
	KindOTPExpired        = "otp_expired"
	KindSignatureMismatch = "signature_mismatch"
	KindDependency        = "dependency"
	KindConflict          = "conflict"
	KindInternal          = "internal"
)

// Error carries a kind and a message that is safe to show to the client.
type Error struct {
	kind  string
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Kind returns the classification kind.
func (e *Error) Kind() string { return e.kind }

// Message returns the client-facing message without the cause.
func (e *Error) Message() string { return e.msg }

func (e *Error) Unwrap() error { return e.cause }

// New returns an Error of the given kind.
func New(kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap returns an Error of the given kind that keeps cause for logging.
func Wrap(kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// NotFound builds a not-found error.
func NotFound(msg string) error {
	return New(KindNotFound, msg)
}

// Dependency wraps a failure of an external collaborator (mail, gateway, queue).
func Dependency(msg string, cause error) error {
	return Wrap(KindDependency, msg, cause)
}

// Conflict builds an error for a request that does not fit the current
// state of the order.
func Conflict(format string, args ...any) error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// Kind returns the kind of err, "internal" for unclassified errors.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case KindValidation, KindOTPInvalid, KindOTPExpired, KindSignatureMismatch, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown to the client. Unclassified errors never
// leak their details.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.kind != KindInternal {
		return e.msg
	}
	return "internal server error"
}
