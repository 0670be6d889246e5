// Package apperr defines the error kinds the HTTP layer knows how to map to
// status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error carries a client-facing message and optional details for one of the
// sentinel kinds above.
type Error struct {
	Kind    error
	Message string
	Details any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalid, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Kind: ErrNotFound, Message: what + " not found"}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// WithDetails attaches structured data returned under "data" in the envelope.
func (e *Error) WithDetails(d any) *Error {
	e.Details = d
	return e
}

// Message returns the client-facing text of err if it is an *Error.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message, true
	}
	return "", false
}

// Details returns the attached details of err if it is an *Error.
func Details(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
