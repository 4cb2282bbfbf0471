package service

import "errors"

var (
	// ErrValidation classifies malformed input rejected before any storage
	// access.  Concrete failures are *ValidationError values.
	ErrValidation = errors.New("validation failed")
	// ErrSlotUnavailable is returned when a booking loses to a closure or to
	// another active reservation, including a concurrent one.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrConflict is returned when closing a slot that is already closed or
	// occupied.
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
