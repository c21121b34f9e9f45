package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError through errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a record does not exist for the owner.
	ErrNotFound = errors.New("record not found")
	// ErrConflict signals a concurrent write on the same natural key. Callers may retry.
	ErrConflict = errors.New("concurrent modification conflict")
	// ErrStorageUnavailable is returned when the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports malformed input. Field names the offending input,
// e.g. "entries[2].amount" or "month".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true for any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a *ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// WithField returns a copy of err with its field prefixed, so nested
// validation ("amount") can be reported in context ("entries[3].amount").
// Non-validation errors are returned unchanged.
func WithField(prefix string, err error) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	field := prefix
	if ve.Field != "" {
		field = prefix + "." + ve.Field
	}
	return &ValidationError{Field: field, Reason: ve.Reason}
}

// IsRetryable reports whether the operation failed on a transient conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
