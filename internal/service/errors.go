package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a service failure. The HTTP layer maps each kind to a status code.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindUnavailable       ErrorKind = "unavailable"
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInternal          ErrorKind = "internal"
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error is returned by every service operation that fails for a reason the
// caller can act on
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationFailed builds a validation error with field details
func ValidationFailed(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// FieldInvalid is a validation error on a single field
func FieldInvalid(field, message string, value interface{}) *Error {
	return ValidationFailed(validationMessage, FieldError{Field: field, Message: message, Value: value})
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func Unavailable(format string, args ...interface{}) *Error {
	return newError(KindUnavailable, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return newError(KindUnauthenticated, format, args...)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return newError(KindInvalidTransition, format, args...)
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
