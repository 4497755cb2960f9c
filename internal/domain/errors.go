package domain

import "errors"

// ErrValidation is the parent of every input rejection. Requests failing
// validation never reach the store.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidAggregation = &validationError{"invalid aggregation type"}
	ErrInvalidPagination  = &validationError{"skip and limit must be non-negative and limit must be positive"}
	ErrInvalidWindow      = &validationError{"invalid day window"}
	ErrNonFiniteValue     = &validationError{"value must be a finite number"}
	ErrEmptyField         = &validationError{"required field is empty"}
	ErrInvalidAttributes  = &validationError{"attributes must be a JSON object"}
	ErrInvalidField       = &validationError{"invalid field value"}
	ErrUnknownReference   = &validationError{"referenced record does not exist"}
)

// ErrNotFound is returned by entity lookups (by id) only. Empty query
// results are not errors.
var ErrNotFound = errors.New("not found")

// ErrConflict reports a unique constraint violation (username, email).
var ErrConflict = errors.New("already exists")

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }
