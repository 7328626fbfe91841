package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage-facing taxonomy.
var (
	// ErrNotFound signals that the target entity does not exist or is not
	// visible to the actor. No partial mutation occurs.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a uniqueness violation that the caller must treat
	// as a rejected duplicate (e.g. voting twice in the same poll).
	ErrConflict = errors.New("conflict")
)

// ValidationError rejects bad input synchronously, before any state is
// mutated.
type ValidationError struct {
	Field string
	Msg   string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validation creates a new validation error for a field.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err signals a missing or invisible entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err signals a rejected duplicate.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
