package entity

import "errors"

var (
	// ErrNotFound is returned when a workflow, task, or template id is unknown
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when an entity or patch violates a model invariant
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an optimistic-concurrency version check fails
	ErrConflict = errors.New("version conflict")
)
