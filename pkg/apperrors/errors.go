// Package apperrors defines the error taxonomy surfaced at the HTTP boundary.
//
// Services return *Error values; handlers translate the Kind to a status code
// through httputil.WriteAppError. Anything that is not an *Error is treated as
// an unexpected internal failure.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation            Kind = "VALIDATION_ERROR"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindForbidden             Kind = "FORBIDDEN"
	KindNotFound              Kind = "NOT_FOUND"
	KindConflict              Kind = "CONFLICT"
	KindOrderSubmissionFailed Kind = "ORDER_SUBMISSION_FAILED"
	KindInternal              Kind = "INTERNAL"
)

// Error is a structured application error.
type Error struct {
	Kind    Kind
	Message string
	// Details carries kind-specific extra response fields, e.g. the factory
	// report link for a failed order.
	Details map[string]string
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

// WithDetail returns e with an extra detail field set.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports malformed input.
func Validation(message string) *Error {
	return newError(KindValidation, message, nil)
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

// Forbidden reports an authenticated identity lacking role or ownership.
func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

// NotFound reports a referenced resource that does not exist.
func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

// Conflict reports a duplicate unique key.
func Conflict(message string) *Error {
	return newError(KindConflict, message, nil)
}

// OrderSubmissionFailed reports a rejection by the pizza factory.
func OrderSubmissionFailed(message string, err error) *Error {
	return newError(KindOrderSubmissionFailed, message, err)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
