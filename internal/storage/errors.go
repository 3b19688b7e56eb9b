package storage

import "errors"

// Run journal errors shared by all backends.
var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run or step key already exists.
	// Step records are never overwritten.
	ErrDuplicateKey = errors.New("duplicate key: journal entries are append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
