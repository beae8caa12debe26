package manager

import "errors"

// Domain errors for the manager package.
var (
	// ErrBindingsDisabled is returned when binding support is off. At Init
	// it means the store holds bindings that could never activate, which is
	// a configuration inconsistency the runtime must not start with.
	ErrBindingsDisabled = errors.New("manager: binding support is disabled")

	// ErrNotInitialised is returned by operations called before Init.
	ErrNotInitialised = errors.New("manager: not initialised")
)
