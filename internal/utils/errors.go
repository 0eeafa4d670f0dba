package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing unit or referenced entity.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed caller input rejected before any store access.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks a write that lost to an equivalent concurrent write.
	ErrConflict = errors.New("conflict")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidArgument).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field string, value any, msg string) error {
	return &ValidationError{Field: field, Value: value, Message: msg}
}

// NotFoundf returns an error wrapping ErrNotFound with a formatted subject.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
