package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no measurement matches the requested id.
	ErrNotFound = errors.New("measurement not found")
	// ErrInvalidInput marks client input that failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError identifies the id that could not be found.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Measurement with id %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
