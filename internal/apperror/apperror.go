// Package apperror defines the domain error taxonomy shared by services
// and handlers. Services return these; the HTTP layer maps them to status
// codes with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the expected failure classes of the business logic.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("store unavailable")
)

// AppError pairs a sentinel with a human-readable message.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation returns an AppError for malformed input.
func Validation(message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message}
}

// NotFound returns an AppError for a missing resource.
func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %d not found", resource, id),
	}
}

// Forbidden returns an AppError for an authorization failure.
func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message}
}

// Conflict returns an AppError for an "already done" condition, such as a
// duplicate daily claim or a repeated seminar rating.
func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

// Unavailable returns an AppError for a transient store failure. The caller
// may retry; the core does not.
func Unavailable(message string) *AppError {
	return &AppError{Err: ErrUnavailable, Message: message}
}
