package storage

import "errors"

// Storage errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails, either before
	// the write or by a database constraint.
	ErrInvalidInput = errors.New("invalid input")
)
