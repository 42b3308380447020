package project

import "errors"

// Domain-specific errors for the project store.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotAuthenticated is returned when a store operation is attempted
	// without a live session.
	ErrNotAuthenticated = errors.New("project: not authenticated")

	// ErrConflict marks a save-item rejection: the revision already exists
	// and overwrite was not requested. Per-item; never fails the batch.
	ErrConflict = errors.New("project: revision exists")

	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("project: document not found")
)
