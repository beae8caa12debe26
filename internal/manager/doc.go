// Package manager is the entry point for component and binding CRUD.
//
// The Manager keeps three things consistent: the live component registry,
// the set of live bindings and the persisted store. Every operation runs on
// the runtime event loop, so callers on any goroutine (RPC handlers, HTTP
// handlers) see one mutation at a time.
//
// Initialisation loads the store, then builds every persisted component,
// then every persisted binding. Components come first so bindings usually
// find both halves already registered.
//
// When binding support is disabled (no presence tracking on the bus) the
// manager refuses to start if the store still holds bindings, and refuses
// to add new ones.
package manager
