package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure independently of any transport
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindUnavailable
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindForbidden:
		return "FORBIDDEN"
	case KindConflict:
		return "CONFLICT"
	case KindUnavailable:
		return "DEPENDENCY_UNAVAILABLE"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is the typed result of a failed service operation
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, format string, args ...interface{}) *Error {
	if code == "" {
		code = kind.String()
	}
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidation reports malformed input; the message names the field
func NewValidation(format string, args ...interface{}) *Error {
	return newError(KindValidation, "", format, args...)
}

// NewNotFound reports a missing entity
func NewNotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, "", format, args...)
}

// NewForbidden reports a role or ownership violation
func NewForbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, "", format, args...)
}

// NewUnauthorized reports missing or wrong credentials
func NewUnauthorized(code, format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, code, format, args...)
}

// NewConflict reports a failed precondition on persistent state
func NewConflict(code, format string, args ...interface{}) *Error {
	return newError(KindConflict, code, format, args...)
}

// NewUnavailable reports a failed external dependency
func NewUnavailable(err error, format string, args ...interface{}) *Error {
	e := newError(KindUnavailable, "", format, args...)
	e.Err = err
	return e
}

// Internal wraps an unexpected failure, usually from the database
func Internal(err error, format string, args ...interface{}) *Error {
	e := newError(KindInternal, "", format, args...)
	e.Err = err
	return e
}

// KindOf extracts the kind of err; untyped errors are internal
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// AsError returns the typed error carried by err, wrapping untyped ones as internal
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Internal(err, "Erreur interne")
}

func (e *Error) withCode(code string) *Error {
	e.Code = code
	return e
}
