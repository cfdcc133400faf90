package storage

import "errors"

// Sentinel errors returned by every history backend. Callers match them with errors.Is.
var (
	// ErrNotFound means no entry exists for the requested day.
	ErrNotFound = errors.New("history entry not found")

	// ErrConflict means a compare-and-swap write lost to a concurrent writer:
	// the stored revision or object version changed since it was read.
	ErrConflict = errors.New("conflict: stored revision changed")

	// ErrInvalidInput means an entry or store configuration was rejected before any I/O.
	ErrInvalidInput = errors.New("invalid history input")
)
