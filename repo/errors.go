package repo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing branch, ref or
	// repository.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a rejected non-fast-forward
	// branch update.
	ErrConflict = errors.New("conflict")
	// ErrValidation reports invalid caller input,
	// detected before any remote call.
	ErrValidation = errors.New("validation failed")
)

// RemoteError is a non-success response of a remote
// repository service. Kind is ErrNotFound or ErrConflict
// when the status maps to one of them, nil otherwise.
type RemoteError struct {
	Status  int
	Message string
	Kind    error
}

// Error implements error.
func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error (status %d)", e.Status)
	}

	return fmt.Sprintf(
		"remote error (status %d): %s", e.Status, e.Message,
	)
}

// Unwrap exposes Kind to errors.Is.
func (e *RemoteError) Unwrap() error {
	return e.Kind
}

// ValidationError names the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a *ValidationError.
func Invalid(field string, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
