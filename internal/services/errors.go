package services

import (
	"errors"
	"fmt"

	"github.com/ateliermtl/studio-billing/internal/validation"
)

// ErrNotFound covers unknown quotes, invoices and public tokens.
var ErrNotFound = errors.New("not_found")

// ValidationError rejects a request before any mutation happens. Violations
// are surfaced verbatim to the caller.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation_failed: %v", map[string]string(e.Violations))
}

func validationErr(field, code string) *ValidationError {
	return &ValidationError{Violations: validation.Violations{field: code}}
}

// StateConflictError rejects a mutation the record's current state forbids.
// No partial write happens.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string {
	return "state_conflict: " + e.Reason
}

func stateConflict(reason string) *StateConflictError {
	return &StateConflictError{Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateConflict reports whether err is a StateConflictError.
func IsStateConflict(err error) bool {
	var se *StateConflictError
	return errors.As(err, &se)
}
