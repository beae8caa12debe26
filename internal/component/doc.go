// Package component provides the live side of the runtime: component hosts
// and the registry that tracks them.
//
// A Host wraps one instantiated plugin. It validates its configuration
// against the plugin metadata, exposes state values, accepts action calls
// with type checking and notifies subscribers when a state member changes.
//
// The Registry is the single authoritative map of live hosts. It emits
// component-added and component-removed events synchronously, so a
// subscriber (typically a binding) has reacted before the call that caused
// the event returns.
//
// Neither type locks. Both are owned by the runtime event loop
// (see package eventloop), which runs one mutation at a time.
//
// Usage:
//
//	reg := component.NewRegistry(catalog)
//	meta, err := reg.GetPlugin("runtime-01", "core/variable-float")
//	host, err := component.NewHost("living-temp", meta, map[string]any{})
//	err = reg.Add(host)
package component
