package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPlotNotFound      = errors.New("plot not found")
	ErrInvalidGeometry   = errors.New("invalid geometry")
	ErrMissingName       = errors.New("missing name")
	ErrNameTooLong       = errors.New("name too long")
	ErrOverlap           = errors.New("overlap")
	ErrDuplicateGeometry = errors.New("duplicate geometry")

	// ErrStoreConflict is wrapped by every ConstraintError.
	ErrStoreConflict = errors.New("plot store constraint violation")
)

// ValidationError is a client input error addressed to a single field.
type ValidationError struct {
	Field     string
	Reason    string
	Conflicts []int64
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Reason {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError whose reason is the sentinel's message.
func NewValidationError(field string, sentinel error, cause error) *ValidationError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %v", sentinel, cause)
	}
	return &ValidationError{Field: field, Reason: sentinel.Error(), Err: err}
}

// ConstraintKind identifies which storage constraint rejected a write.
type ConstraintKind string

const (
	KindDuplicate ConstraintKind = "duplicate"
	KindOverlap   ConstraintKind = "overlap"
	KindInvalid   ConstraintKind = "invalid"
	KindBlankName ConstraintKind = "blank_name"
)

// ConstraintError is raised by a store when one of its own constraints
// rejects a write, independently of any application-level check.
type ConstraintError struct {
	Constraint string
	Kind       ConstraintKind
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s (%s) violated: %v", e.Constraint, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() []error { return []error{ErrStoreConflict, e.Err} }

// AsValidation converts a storage rejection into the client-facing error class.
func (e *ConstraintError) AsValidation() *ValidationError {
	switch e.Kind {
	case KindDuplicate:
		return &ValidationError{Field: "geometry", Reason: ErrDuplicateGeometry.Error(), Err: fmt.Errorf("%w: %w", ErrDuplicateGeometry, e)}
	case KindBlankName:
		return &ValidationError{Field: "name", Reason: ErrMissingName.Error(), Err: fmt.Errorf("%w: %w", ErrMissingName, e)}
	case KindInvalid:
		return &ValidationError{Field: "geometry", Reason: ErrInvalidGeometry.Error(), Err: fmt.Errorf("%w: %w", ErrInvalidGeometry, e)}
	default:
		return &ValidationError{Field: "geometry", Reason: ErrOverlap.Error(), Err: fmt.Errorf("%w: %w", ErrOverlap, e)}
	}
}
