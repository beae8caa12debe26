package binding

import (
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-runtime/internal/component"
)

// Logger defines the logging interface used by bindings.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State is the lifecycle state of a binding.
type State string

// Binding states.
const (
	// StateInactive means one or both halves are not registered.
	StateInactive State = "inactive"

	// StateError means both halves are registered but validation failed.
	StateError State = "error"

	// StateActive means state changes of the source are being forwarded.
	StateActive State = "active"

	// StateClosed is terminal.
	StateClosed State = "closed"
)

// ForwardObserver is told about every forwarded value and its outcome.
type ForwardObserver func(cfg Config, err error)

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the logger for validation and forwarding diagnostics.
func WithLogger(logger Logger) Option {
	return func(b *Binding) { b.logger = logger }
}

// WithForwardObserver installs an observer called after each forwarded action.
func WithForwardObserver(fn ForwardObserver) Option {
	return func(b *Binding) { b.observer = fn }
}

// WithStateObserver installs a callback run after every state transition.
func WithStateObserver(fn func(cfg Config, from, to State)) Option {
	return func(b *Binding) { b.onTransition = fn }
}

// Binding is a reactive edge from one component's state member to another
// component's action member.
//
// It watches the registry for both halves, so it may be created before,
// after or between the components it connects. Once both are registered it
// validates the members and, when valid, forwards every change of the
// source state to the target action.
//
// Thread Safety:
//   - Binding is not safe for concurrent use; it runs on the event loop that
//     owns the registry.
type Binding struct {
	cfg      Config
	registry *component.Registry

	source *component.Host
	target *component.Host
	errors []string
	active bool
	closed bool

	unsubRegistry func()
	unsubState    func()

	logger       Logger
	observer     ForwardObserver
	onTransition func(cfg Config, from, to State)
}

// New creates a binding, subscribes it to registry lifecycle events and
// resolves any half that is already registered.
func New(cfg Config, registry *component.Registry, opts ...Option) *Binding {
	b := &Binding{
		cfg:      cfg,
		registry: registry,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}

	b.unsubRegistry = registry.Subscribe(b.handleEvent)

	for h := range registry.Components() {
		if h.ID() == cfg.SourceID || h.ID() == cfg.TargetID {
			b.componentAdded(h)
		}
	}

	return b
}

// Config returns the binding's identity.
func (b *Binding) Config() Config {
	return b.cfg
}

// Key returns the binding's deduplication key.
func (b *Binding) Key() string {
	return b.cfg.Key()
}

// State returns the current lifecycle state.
func (b *Binding) State() State {
	switch {
	case b.closed:
		return StateClosed
	case b.active:
		return StateActive
	case len(b.errors) > 0:
		return StateError
	default:
		return StateInactive
	}
}

// Active reports whether both halves are resolved and valid.
func (b *Binding) Active() bool {
	return b.active
}

// Errors returns a copy of the current validation errors.
func (b *Binding) Errors() []string {
	return slices.Clone(b.errors)
}

// Status is a presentation snapshot of a binding.
type Status struct {
	Config
	State          State    `json:"state"`
	Errors         []string `json:"errors,omitempty"`
	SourceResolved bool     `json:"sourceResolved"`
	TargetResolved bool     `json:"targetResolved"`
}

// Status returns a snapshot of the binding for presentation.
func (b *Binding) Status() Status {
	return Status{
		Config:         b.cfg,
		State:          b.State(),
		Errors:         b.Errors(),
		SourceResolved: b.source != nil,
		TargetResolved: b.target != nil,
	}
}

// Close stops watching the registry and tears down any resolved half.
// The binding ends in StateClosed. Closing twice is a no-op.
func (b *Binding) Close() {
	if b.closed {
		return
	}

	b.unsubRegistry()
	if b.source != nil {
		b.componentRemoved(b.source)
	}
	if b.target != nil {
		b.componentRemoved(b.target)
	}

	from := b.State()
	b.closed = true
	b.transitioned(from)
}

func (b *Binding) handleEvent(ev component.Event) {
	id := ev.Component.ID()
	if id != b.cfg.SourceID && id != b.cfg.TargetID {
		return
	}

	switch ev.Type {
	case component.EventAdded:
		b.componentAdded(ev.Component)
	case component.EventRemoved:
		b.componentRemoved(ev.Component)
	}
}

func (b *Binding) componentAdded(h *component.Host) {
	if h.ID() == b.cfg.SourceID {
		b.source = h
	}
	if h.ID() == b.cfg.TargetID {
		b.target = h
	}

	if b.source != nil && b.target != nil {
		b.init()
	}
}

func (b *Binding) componentRemoved(h *component.Host) {
	if h != b.source && h != b.target {
		return
	}
	b.terminate()

	if h == b.source {
		b.source = nil
	}
	if h == b.target {
		b.target = nil
	}
}

// init validates the two halves and, when valid, activates forwarding.
func (b *Binding) init() {
	from := b.State()
	if b.active {
		b.unsubState()
		b.active = false
	}

	b.errors = b.validate()
	if len(b.errors) > 0 {
		for _, msg := range b.errors {
			b.logger.Warn("binding invalid", "binding", b.cfg.String(), "error", msg)
		}
		b.transitioned(from)
		return
	}

	b.active = true
	b.unsubState = b.source.OnState(b.handleState)
	b.logger.Debug("binding active", "binding", b.cfg.String())
	b.transitioned(from)

	// Bring a freshly wired target up to date with a source that already
	// has a value.
	value, err := b.source.GetState(b.cfg.SourceState)
	if err == nil && value != nil {
		b.forward(value)
	}
}

// terminate drops the state subscription and the validation errors.
func (b *Binding) terminate() {
	from := b.State()
	if b.active {
		b.unsubState()
		b.unsubState = nil
		b.active = false
	}
	b.errors = nil
	b.transitioned(from)
}

func (b *Binding) validate() []string {
	var errs []string

	state, stateOK := b.source.Plugin().StateMember(b.cfg.SourceState)
	if !stateOK {
		errs = append(errs, fmt.Sprintf("State `%s` does not exist on component `%s`", b.cfg.SourceState, b.cfg.SourceID))
	}

	action, actionOK := b.target.Plugin().ActionMember(b.cfg.TargetAction)
	if !actionOK {
		errs = append(errs, fmt.Sprintf("Action `%s` does not exist on component `%s`", b.cfg.TargetAction, b.cfg.TargetID))
	}

	if stateOK && actionOK && !action.Accepts(state) {
		errs = append(errs, fmt.Sprintf(
			"State `%s` on component `%s` has type `%s` but action `%s` on component `%s` expects `%s`",
			b.cfg.SourceState, b.cfg.SourceID, state.TypeName(),
			b.cfg.TargetAction, b.cfg.TargetID, action.TypeName()))
	}

	return errs
}

func (b *Binding) handleState(member string, value any) {
	if !b.active || member != b.cfg.SourceState || value == nil {
		return
	}
	b.forward(value)
}

func (b *Binding) forward(value any) {
	err := b.target.ExecuteAction(b.cfg.TargetAction, value)
	if err != nil {
		b.logger.Warn("forwarding binding value failed", "binding", b.cfg.String(), "error", err)
	}
	if b.observer != nil {
		b.observer(b.cfg, err)
	}
}

func (b *Binding) transitioned(from State) {
	to := b.State()
	if from == to || b.onTransition == nil {
		return
	}
	b.onTransition(b.cfg, from, to)
}
