package queue

import "errors"

var (
	// ErrInvalidTransition is returned when a status change is not an edge of
	// the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrClaimLost is returned when a guarded write finds the item no longer in
	// the expected status or held by another claim.
	ErrClaimLost = errors.New("claim lost")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSchemaMismatch indicates the database carries migrations this build does not know.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrInvalidStatus is returned for status strings outside the enum.
	ErrInvalidStatus = errors.New("invalid status")
)
