package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrForeignKeyViolation is returned when a record is still referenced.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned when a check constraint fails.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrInsufficientBalance is returned when a guarded debit would drive a
	// ledger balance below zero.
	ErrInsufficientBalance = errors.New("persistence: insufficient balance")
	// ErrStaleRecord is returned when an optimistic update finds the record
	// changed since it was read.
	ErrStaleRecord = errors.New("persistence: stale record")
)
