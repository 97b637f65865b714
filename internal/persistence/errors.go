package persistence

import "errors"

// Common errors for persistence operations
var (
	// ErrNotFound is returned when no host matches the given filter
	ErrNotFound = errors.New("host not found in store")

	// ErrDuplicateKey is returned when inserting a host whose ID already exists
	ErrDuplicateKey = errors.New("host ID already exists in store")

	// ErrTxConflict is returned when an atomic update keeps losing races
	// against concurrent writers and runs out of retries
	ErrTxConflict = errors.New("too many conflicting concurrent updates")
)
