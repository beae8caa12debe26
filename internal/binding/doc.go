// Package binding wires the state of one component to an action of another.
//
// A binding is identified by its 4-tuple (source id, source state, target
// id, target action) and moves through these states:
//
//	inactive  one or both components are not registered
//	error     both registered, but a member is missing or the value types differ
//	active    both registered and valid; source changes are forwarded
//	closed    torn down by Close
//
// Bindings watch the component registry, so creation order does not
// matter. When a half disappears the binding drops back to inactive and
// resumes once it returns. On activation, a source value that is already
// set is forwarded once so the target converges immediately.
//
// Validation problems are not errors for the caller: they are recorded on
// the binding, logged, and visible through Status.
package binding
