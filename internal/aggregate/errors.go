package aggregate

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every NotFoundError
var ErrNotFound = errors.New("not found")

// ErrInvalid matches every ValidationError
var ErrInvalid = errors.New("invalid request")

// NotFoundError reports a missing primary entity. It aborts the whole view.
type NotFoundError struct {
	Entity string
	ID     string
	Err    error // backend error, if the miss came from a 404
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError rejects a command before it reaches the backend
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}
