package component

import "errors"

// Domain errors for the component package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, component.ErrDuplicateID) {
//	    // report a conflict to the caller
//	}
var (
	// ErrDuplicateID is returned when adding a component whose id is already taken.
	ErrDuplicateID = errors.New("component: duplicate id")

	// ErrNotFound is returned when a component id is not registered.
	ErrNotFound = errors.New("component: not found")

	// ErrInvalidConfig is returned when a component configuration is missing
	// required items or holds values of the wrong type.
	ErrInvalidConfig = errors.New("component: invalid config")

	// ErrUnknownMember is returned when a member name is not declared by the
	// plugin with the expected member type.
	ErrUnknownMember = errors.New("component: unknown member")

	// ErrTypeMismatch is returned when a value does not match the declared value type.
	ErrTypeMismatch = errors.New("component: type mismatch")

	// ErrDestroyed is returned by every call on a host after Destroy.
	ErrDestroyed = errors.New("component: destroyed")

	// ErrPluginFailed is returned when the plugin factory refuses to start.
	ErrPluginFailed = errors.New("component: plugin failed to start")
)
