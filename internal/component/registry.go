package component

import (
	"fmt"
	"iter"
	"slices"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// Logger defines the logging interface used by the component package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the authoritative set of live components, keyed by id.
//
// Lifecycle events are delivered synchronously and depth-first: every
// listener has returned before Add or Remove returns.
//
// Thread Safety:
//   - Registry is not safe for concurrent use. It is owned by the runtime
//     event loop, which serialises every mutation.
type Registry struct {
	catalog    *plugin.Catalog
	components map[string]*Host
	order      []*Host
	listeners  []*listenerSub
	logger     Logger
}

type listenerSub struct {
	fn     Listener
	active bool
}

// NewRegistry creates an empty registry that resolves plugins through catalog.
func NewRegistry(catalog *plugin.Catalog) *Registry {
	return &Registry{
		catalog:    catalog,
		components: make(map[string]*Host),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Subscribe registers fn for lifecycle events and returns a function that
// removes it. A listener removed during an emission is skipped for the rest
// of that emission.
func (r *Registry) Subscribe(fn Listener) (unsubscribe func()) {
	sub := &listenerSub{fn: fn, active: true}
	r.listeners = append(r.listeners, sub)

	return func() {
		if !sub.active {
			return
		}
		sub.active = false
		for i, l := range r.listeners {
			if l == sub {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				break
			}
		}
	}
}

// Add registers h and emits EventAdded.
// Returns ErrDuplicateID if a component with the same id is registered.
func (r *Registry) Add(h *Host) error {
	if _, exists := r.components[h.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, h.ID())
	}

	r.components[h.ID()] = h
	r.order = append(r.order, h)
	r.logger.Debug("component registered", "component_id", h.ID(), "plugin", h.Plugin().ID())

	r.emit(Event{Type: EventAdded, Component: h})
	return nil
}

// Remove unregisters the component with id and emits EventRemoved before
// returning, so listeners finish tear-down while the host is still intact.
// The host is not destroyed; that is the caller's decision.
//
// Returns ErrNotFound if id is not registered.
func (r *Registry) Remove(id string) (*Host, error) {
	h, ok := r.components[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(r.components, id)
	r.order = slices.DeleteFunc(r.order, func(c *Host) bool { return c == h })
	r.logger.Debug("component unregistered", "component_id", id)

	r.emit(Event{Type: EventRemoved, Component: h})
	return h, nil
}

// Get returns the component registered under id.
func (r *Registry) Get(id string) (*Host, bool) {
	h, ok := r.components[id]
	return h, ok
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	return len(r.components)
}

// Components returns a sequence over the registered components in
// registration order. Each iteration takes a fresh snapshot, so the
// sequence can be ranged over repeatedly and is not affected by changes
// made while it is being consumed.
func (r *Registry) Components() iter.Seq[*Host] {
	return func(yield func(*Host) bool) {
		snapshot := slices.Clone(r.order)
		for _, h := range snapshot {
			if !yield(h) {
				return
			}
		}
	}
}

// GetPlugin returns the metadata of plugin id as provided by instance.
// Returns plugin.ErrPluginNotFound if it is not registered.
func (r *Registry) GetPlugin(instance, id string) (*plugin.Metadata, error) {
	return r.catalog.Lookup(instance, id)
}

func (r *Registry) emit(ev Event) {
	listeners := slices.Clone(r.listeners)
	for _, l := range listeners {
		if l.active {
			l.fn(ev)
		}
	}
}
