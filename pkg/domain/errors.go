package domain

import (
	"errors"
	"fmt"
)

// ErrCancelled signals cooperative cancellation of a long-running batch job.
// Partial work committed before the cancellation point is kept.
var ErrCancelled = errors.New("cancelled")

// NotFoundError reports a lookup against a missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

// Error describes the missing record.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ValidationError reports invalid caller input or a failed action
// precondition. The operation it rejects has no effect on stored state.
type ValidationError struct {
	Message string
}

// Error returns the validation message.
func (e ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
