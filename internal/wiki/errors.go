package wiki

import "errors"

var (
	// ErrNotFound is returned by lookups when no record matches.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)
