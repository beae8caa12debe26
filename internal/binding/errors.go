package binding

import "errors"

// Domain errors for the binding package.
var (
	// ErrDuplicate is returned when adding a binding whose key is already tracked.
	ErrDuplicate = errors.New("binding: duplicate")

	// ErrNotFound is returned when removing a binding whose key is not tracked.
	ErrNotFound = errors.New("binding: not found")

	// ErrInvalidConfig is returned when a binding config is incomplete.
	ErrInvalidConfig = errors.New("binding: invalid config")
)
