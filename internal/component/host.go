package component

import (
	"fmt"
	"reflect"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// Host wraps one instantiated plugin as an addressable component.
//
// State members start unset (nil) and are populated by the plugin's logic.
// A nil state value means "not yet available"; consumers must never forward
// it as an action value.
//
// Thread Safety:
//   - Host is not safe for concurrent use. All calls, including the plugin's
//     StateSink.Set, happen on the runtime event loop. Plugin goroutines
//     reach the loop through StateSink.Post.
type Host struct {
	id       string
	instance string
	meta     *plugin.Metadata
	config   map[string]any
	state    map[string]any
	logic    plugin.Logic

	subs      []*stateSub
	destroyed bool

	post   func(func())
	logger Logger
}

type stateSub struct {
	fn     StateListener
	active bool
}

// HostOption configures optional Host behaviour.
type HostOption func(*Host)

// WithInstance annotates the host with the runtime instance it belongs to.
// The annotation is informational only.
func WithInstance(instance string) HostOption {
	return func(h *Host) { h.instance = instance }
}

// WithPoster sets the function used by StateSink.Post to schedule work on
// the event loop. Without it, posted functions run on the caller's goroutine.
func WithPoster(post func(func())) HostOption {
	return func(h *Host) { h.post = post }
}

// WithHostLogger sets the logger used for plugin diagnostics.
func WithHostLogger(logger Logger) HostOption {
	return func(h *Host) { h.logger = logger }
}

// NewHost validates config against meta and instantiates the plugin.
//
// Parameters:
//   - id: Component id, unique within a registry
//   - meta: Registered plugin metadata; referenced, never copied
//   - config: Component configuration; missing optional items get defaults
//
// Returns:
//   - *Host: The running component
//   - error: ErrInvalidConfig or ErrPluginFailed
func NewHost(id string, meta *plugin.Metadata, config map[string]any, opts ...HostOption) (*Host, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}

	resolved, err := meta.ResolveConfig(config)
	if err != nil {
		return nil, fmt.Errorf("%w: component %s (%s): %w", ErrInvalidConfig, id, meta.ID(), err)
	}

	h := &Host{
		id:     id,
		meta:   meta,
		config: resolved,
		state:  make(map[string]any),
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}

	if meta.Factory != nil {
		logic, err := meta.Factory(deepCopyMap(resolved), hostSink{h: h})
		if err != nil {
			return nil, fmt.Errorf("%w: component %s (%s): %w", ErrPluginFailed, id, meta.ID(), err)
		}
		h.logic = logic
	}

	return h, nil
}

// ID returns the component id.
func (h *Host) ID() string {
	return h.id
}

// Instance returns the instance annotation, if any.
func (h *Host) Instance() string {
	return h.instance
}

// Plugin returns the plugin metadata the host was built from.
func (h *Host) Plugin() *plugin.Metadata {
	return h.meta
}

// Config returns a copy of the resolved configuration.
func (h *Host) Config() map[string]any {
	return deepCopyMap(h.config)
}

// GetState returns the current value of a state member, or nil if the
// plugin has not set it yet.
func (h *Host) GetState(member string) (any, error) {
	if h.destroyed {
		return nil, fmt.Errorf("%w: %s", ErrDestroyed, h.id)
	}
	if _, ok := h.meta.StateMember(member); !ok {
		return nil, fmt.Errorf("%w: state %q on component %s", ErrUnknownMember, member, h.id)
	}
	return h.state[member], nil
}

// State returns a copy of every state value that has been set.
func (h *Host) State() map[string]any {
	return deepCopyMap(h.state)
}

// ExecuteAction invokes an action member with value.
//
// Returns:
//   - ErrDestroyed after Destroy
//   - ErrUnknownMember if member is not an action of the plugin
//   - ErrTypeMismatch if value does not match the action's value type
//   - any error returned by the plugin logic
func (h *Host) ExecuteAction(member string, value any) error {
	if h.destroyed {
		return fmt.Errorf("%w: %s", ErrDestroyed, h.id)
	}

	action, ok := h.meta.ActionMember(member)
	if !ok {
		return fmt.Errorf("%w: action %q on component %s", ErrUnknownMember, member, h.id)
	}
	if !action.ValueType.Check(value, action.Options) {
		return fmt.Errorf("%w: action %q on component %s expects %s, got %T",
			ErrTypeMismatch, member, h.id, action.TypeName(), value)
	}

	if h.logic == nil {
		return nil
	}
	return h.logic.Execute(member, value)
}

// OnState subscribes fn to state changes and returns a function that
// removes the subscription. Calling the returned function more than once is
// harmless. A listener removed during an emission is not called for the
// remainder of it.
func (h *Host) OnState(fn StateListener) (unsubscribe func()) {
	sub := &stateSub{fn: fn, active: true}
	h.subs = append(h.subs, sub)

	return func() {
		if !sub.active {
			return
		}
		sub.active = false
		for i, s := range h.subs {
			if s == sub {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				break
			}
		}
	}
}

// Info returns a snapshot of the host for presentation.
func (h *Host) Info() Info {
	return Info{
		ID:       h.id,
		Plugin:   h.meta.ID(),
		Instance: h.instance,
		Config:   h.Config(),
		State:    h.State(),
	}
}

// Destroy closes the plugin logic and drops every state subscription.
// Later calls on the host return ErrDestroyed; a second Destroy is a no-op.
func (h *Host) Destroy() error {
	if h.destroyed {
		return nil
	}
	h.destroyed = true

	for _, s := range h.subs {
		s.active = false
	}
	h.subs = nil

	if h.logic == nil {
		return nil
	}
	if err := h.logic.Close(); err != nil {
		return fmt.Errorf("closing plugin logic of %s: %w", h.id, err)
	}
	return nil
}

// setState records a state value and notifies subscribers when it changed.
func (h *Host) setState(member string, value any) error {
	if h.destroyed {
		return fmt.Errorf("%w: %s", ErrDestroyed, h.id)
	}

	decl, ok := h.meta.StateMember(member)
	if !ok {
		return fmt.Errorf("%w: state %q on component %s", ErrUnknownMember, member, h.id)
	}
	if value != nil && !decl.ValueType.Check(value, decl.Options) {
		return fmt.Errorf("%w: state %q on component %s expects %s, got %T",
			ErrTypeMismatch, member, h.id, decl.ValueType, value)
	}

	if old, set := h.state[member]; set && reflect.DeepEqual(old, value) {
		return nil
	}
	if value == nil {
		if _, set := h.state[member]; !set {
			return nil
		}
		delete(h.state, member)
	} else {
		h.state[member] = value
	}

	// Subscribers may unsubscribe (or subscribe) while we iterate.
	subs := append([]*stateSub(nil), h.subs...)
	for _, s := range subs {
		if s.active {
			s.fn(member, value)
		}
	}
	return nil
}

// hostSink is the StateSink handed to plugin logic.
type hostSink struct {
	h *Host
}

func (s hostSink) Set(member string, value any) error {
	return s.h.setState(member, value)
}

func (s hostSink) Post(fn func()) {
	if s.h.post == nil {
		fn()
		return
	}
	s.h.post(fn)
}
