package plugin

import "errors"

// Domain errors for the plugin package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, plugin.ErrPluginNotFound) {
//	    // reject the component
//	}
var (
	// ErrPluginNotFound is returned when no plugin is registered under an id.
	ErrPluginNotFound = errors.New("plugin: not found")

	// ErrDuplicatePlugin is returned when registering an id twice in the same scope.
	ErrDuplicatePlugin = errors.New("plugin: already registered")

	// ErrInvalidMetadata is returned when plugin metadata fails validation.
	ErrInvalidMetadata = errors.New("plugin: invalid metadata")

	// ErrInvalidPluginID is returned when an id is not of the form module/name.
	ErrInvalidPluginID = errors.New("plugin: invalid id")
)
