package domain

import (
	"fmt"
)

// ErrNotFound signals a missing entity.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found with ID: %s", e.Entity, e.ID)
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// ValidationError represents invalid input or parameters. It is never retried.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new validation error with the given message.
func NewValidationError(message string) error {
	return ValidationError{Message: message}
}

// ErrInvalidReference signals a malformed spreadsheet reference.
type ErrInvalidReference struct {
	Input  string
	Reason string
}

func (e *ErrInvalidReference) Error() string {
	return fmt.Sprintf("invalid spreadsheet reference %q: %s", e.Input, e.Reason)
}

// ResolutionError signals that a template could not be rendered for a recipient.
type ResolutionError struct {
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("placeholder resolution failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("placeholder resolution failed: %s", e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// SchedulingInvariantError signals a schedule-integrity bug, such as a
// follow-up send request without a thread id. It is fatal to that send and is
// not retried without operator action.
type SchedulingInvariantError struct {
	RecipientID string
	Reason      string
}

func (e *SchedulingInvariantError) Error() string {
	return fmt.Sprintf("scheduling invariant violated for recipient %s: %s", e.RecipientID, e.Reason)
}

// GatewayError wraps a transport-level failure from the mail or spreadsheet
// gateway.
type GatewayError struct {
	Operation string
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Operation, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
