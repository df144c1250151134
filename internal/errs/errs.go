// Package errs defines the failure kinds returned by the services and how the
// HTTP boundary reports them.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. The boundary maps each kind to a status code.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindBadRequest   Kind = "bad_request"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Sentinels kept in the cause chain so callers can tell apart failures that
// share a kind at the boundary.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("operation not allowed")
)

// Error is a typed failure: a kind, a message safe to show to clients and an
// optional internal cause that is only logged.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status suggested for the kind.
func (e *Error) StatusCode() int {
	return StatusCode(e.Kind)
}

func StatusCode(k Kind) int {
	switch k {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func BadRequest(message string) *Error   { return New(KindBadRequest, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return &Error{Kind: KindForbidden, Message: message, Cause: ErrForbidden} }

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Cause: ErrNotFound}
}

// Hidden reports a permission failure as NotFound so callers cannot probe for
// the existence of records they do not own. errors.Is(err, ErrForbidden) still
// holds.
func Hidden(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Cause: ErrForbidden}
}

// Validation carries per-field messages.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation error", Fields: fields}
}

// Internal wraps an unexpected failure. The message is generic; the cause is
// for logs only.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Cause: cause}
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// From converts any error into an *Error, wrapping unknown ones as Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
