package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "validation_failed"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindAlreadyExists      Kind = "already_exists"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by services. Handlers translate Kind into a
// status code; Message is safe to show to clients for every kind except Internal.
type Error struct {
	Kind    Kind
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

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrForbidden) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrInternal           = &Error{Kind: KindInternal}
)

func Validation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func AlreadyExists(format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

func InvalidCredentials(message string) *Error {
	return &Error{Kind: KindInvalidCredentials, Message: message}
}

// Internal wraps a storage or collaborator failure. The cause is kept for logs only.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err. Errors that did not originate here are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
