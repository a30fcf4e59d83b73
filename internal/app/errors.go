package app

import (
	"errors"
	"fmt"

	"github.com/evanschultz/quadro/internal/domain"
)

// ErrNotFound and related errors classify store failures for callers.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrTransport   = errors.New("transport failure")
	ErrStoreClosed = errors.New("store closed")
	ErrDuplicateID = errors.New("duplicate task id")
)

// ValidationError reports malformed create/update input. Nothing is applied
// when it is returned.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %v", e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an operation against a task id the store does not hold.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransportError wraps a failure of the persistence collaborator. Local state
// is left as it was before the call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// validationFromDomain lifts a domain sentinel into a ValidationError naming
// the offending field. Errors that are not domain validation failures pass through.
func validationFromDomain(err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return err
	}
	field := ""
	switch {
	case errors.Is(err, domain.ErrInvalidTitle):
		field = "title"
	case errors.Is(err, domain.ErrInvalidStatus):
		field = "status"
	case errors.Is(err, domain.ErrInvalidPriority):
		field = "priority"
	case errors.Is(err, domain.ErrInvalidOriginModule):
		field = "originModule"
	case errors.Is(err, domain.ErrInvalidDueDate):
		field = "dueDate"
	case errors.Is(err, domain.ErrInvalidOrderIndex):
		field = "orderIndex"
	case errors.Is(err, domain.ErrInvalidID):
		field = "id"
	case errors.Is(err, domain.ErrUnknownPatchField), errors.Is(err, domain.ErrEmptyPatch):
		field = "patch"
	default:
		return err
	}
	return &ValidationError{Field: field, Err: err}
}

// transportFromErr wraps persistence failures, translating a collaborator
// not-found into the store's own taxonomy.
func transportFromErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return &TransportError{Op: op, Err: err}
}
