// Package common defines sentinel errors, the tagged AppError type and small
// helpers shared by the server layers. Callers match errors with errors.Is.
package common

import (
	"errors"
	"fmt"
)

var (
	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors, one per error kind exposed to clients
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation failed")

	// token errors
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = fmt.Errorf("%w: token expired", ErrInvalidToken)
)

// AppError is an error tagged with one of the kind sentinels above.
// Message is safe to show to clients; Err is the internal cause, if any.
type AppError struct {
	Kind    error
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Kind: ErrorUnauthorized, Message: msg}
}

func Forbidden(msg string) *AppError {
	return &AppError{Kind: ErrorForbidden, Message: msg}
}

func NotFound(msg string) *AppError {
	return &AppError{Kind: ErrorNotFound, Message: msg}
}

// Validation builds a ValidationFailed error. details maps field names to
// human readable reasons and may be nil.
func Validation(msg string, details map[string]any) *AppError {
	return &AppError{Kind: ErrorValidation, Message: msg, Details: details}
}

// KindOf returns the kind sentinel carried by err, or ErrorInternal when err
// does not match any known kind.
func KindOf(err error) error {
	for _, kind := range []error{ErrorUnauthorized, ErrorForbidden, ErrorValidation, ErrorNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrorInternal
}
