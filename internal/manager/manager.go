package manager

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/eventloop"
	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
	"github.com/nerrad567/gray-logic-runtime/internal/store"
)

// Logger defines the logging interface used by the manager.
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

// Deps holds the collaborators a Manager coordinates.
type Deps struct {
	Loop     *eventloop.Loop
	Catalog  *plugin.Catalog
	Registry *component.Registry
	Sync     *store.SyncManager
	Logger   Logger

	// BindingOptions are passed to every binding the manager creates,
	// typically metrics observers.
	BindingOptions []binding.Option
}

// Options control manager behaviour.
type Options struct {
	// Instance is the runtime instance id used to resolve plugins.
	Instance string

	// BindingsEnabled turns binding support on.
	BindingsEnabled bool
}

// Manager performs CRUD on components and bindings and persists the
// desired configuration.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Mutating methods run on the
//     event loop and must not be called from a task already running on it.
type Manager struct {
	opts     Options
	loop     *eventloop.Loop
	catalog  *plugin.Catalog
	registry *component.Registry
	sync     *store.SyncManager
	store    *store.Store
	logger   Logger

	bindingOpts []binding.Option

	// Owned by the event loop.
	bindings    map[string]*binding.Binding
	skipped     map[string]error
	initialised bool
}

// New creates a manager. Call Init before any other method.
func New(opts Options, deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		opts:        opts,
		loop:        deps.Loop,
		catalog:     deps.Catalog,
		registry:    deps.Registry,
		sync:        deps.Sync,
		store:       deps.Sync.Store(),
		logger:      logger,
		bindingOpts: deps.BindingOptions,
		bindings:    make(map[string]*binding.Binding),
		skipped:     make(map[string]error),
	}
}

// BindingsEnabled reports whether binding support is on.
func (m *Manager) BindingsEnabled() bool {
	return m.opts.BindingsEnabled
}

// Init loads the store and builds the persisted components and bindings.
//
// A persisted component that cannot be built (missing plugin, invalid
// config) is logged and skipped; its config stays in the store.
//
// Returns:
//   - ErrBindingsDisabled if binding support is off and the store holds bindings
//   - store errors if the store cannot be loaded
func (m *Manager) Init(ctx context.Context) error {
	if err := m.store.Load(ctx); err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	components := m.store.Components()
	bindings := m.store.Bindings()

	if !m.opts.BindingsEnabled && len(bindings) > 0 {
		return fmt.Errorf("%w: store holds %d binding(s) that can never activate", ErrBindingsDisabled, len(bindings))
	}

	return m.loop.Do(ctx, func() error {
		for _, cfg := range components {
			h, err := m.newHost(cfg)
			if err == nil {
				err = m.registry.Add(h)
			}
			if err != nil {
				m.skipped[cfg.ID] = err
				m.logger.Warn("skipping persisted component",
					"component_id", cfg.ID,
					"plugin", cfg.Plugin,
					"error", err,
				)
			}
		}

		for _, cfg := range bindings {
			m.bindings[cfg.Key()] = binding.New(cfg, m.registry, m.bindingOptions()...)
		}

		m.initialised = true
		m.logger.Info("runtime initialised",
			"components", m.registry.Len(),
			"skipped", len(m.skipped),
			"bindings", len(m.bindings),
		)
		return nil
	})
}

// AddComponent builds, registers and persists a component.
//
// Returns:
//   - component.ErrInvalidConfig if cfg is incomplete or rejected by the plugin
//   - component.ErrDuplicateID if the id is already tracked
//   - plugin.ErrPluginNotFound if the plugin is not registered for this instance
//   - component.ErrPluginFailed if the plugin refuses to start
func (m *Manager) AddComponent(ctx context.Context, cfg component.Config) (component.Info, error) {
	if err := cfg.Validate(); err != nil {
		return component.Info{}, err
	}
	cfg = cfg.DeepCopy()

	var info component.Info
	err := m.do(ctx, func() error {
		if _, ok := m.registry.Get(cfg.ID); ok || m.store.HasComponent(cfg.ID) {
			return fmt.Errorf("%w: %s", component.ErrDuplicateID, cfg.ID)
		}

		h, err := m.newHost(cfg)
		if err != nil {
			return err
		}
		if err := m.registry.Add(h); err != nil {
			_ = h.Destroy() //nolint:errcheck // Never registered
			return err
		}

		m.store.SetComponent(cfg)
		info = h.Info()
		m.logger.Info("component added", "component_id", cfg.ID, "plugin", cfg.Plugin)
		return nil
	})
	return info, err
}

// RemoveComponent unregisters and destroys a component and deletes its
// persisted config. A persisted component that was skipped at Init is
// removed from the store only.
//
// Returns:
//   - component.ErrNotFound if the id is not tracked
func (m *Manager) RemoveComponent(ctx context.Context, id string) error {
	return m.do(ctx, func() error {
		h, err := m.registry.Remove(id)
		switch {
		case err == nil:
			if derr := h.Destroy(); derr != nil {
				m.logger.Warn("component logic failed to close", "component_id", id, "error", derr)
			}
		case !m.store.HasComponent(id):
			return err
		}

		delete(m.skipped, id)
		m.store.RemoveComponent(id)
		m.logger.Info("component removed", "component_id", id)
		return nil
	})
}

// AddBinding creates and persists a binding.
//
// Returns:
//   - ErrBindingsDisabled if binding support is off
//   - binding.ErrInvalidConfig if cfg is incomplete
//   - binding.ErrDuplicate if a binding with the same key exists
func (m *Manager) AddBinding(ctx context.Context, cfg binding.Config) (binding.Status, error) {
	if !m.opts.BindingsEnabled {
		return binding.Status{}, ErrBindingsDisabled
	}
	if err := cfg.Validate(); err != nil {
		return binding.Status{}, err
	}

	var status binding.Status
	err := m.do(ctx, func() error {
		key := cfg.Key()
		if _, exists := m.bindings[key]; exists {
			return fmt.Errorf("%w: %s", binding.ErrDuplicate, cfg)
		}

		b := binding.New(cfg, m.registry, m.bindingOptions()...)
		m.bindings[key] = b
		m.store.AddBinding(cfg)

		status = b.Status()
		m.logger.Info("binding added", "binding", cfg.String(), "state", status.State)
		return nil
	})
	return status, err
}

// RemoveBinding closes a binding and deletes its persisted config.
//
// Returns:
//   - binding.ErrNotFound if no binding has the same key
func (m *Manager) RemoveBinding(ctx context.Context, cfg binding.Config) error {
	return m.do(ctx, func() error {
		key := cfg.Key()
		b, ok := m.bindings[key]
		if !ok {
			return fmt.Errorf("%w: %s", binding.ErrNotFound, cfg)
		}

		b.Close()
		delete(m.bindings, key)
		m.store.RemoveBinding(cfg)
		m.logger.Info("binding removed", "binding", cfg.String())
		return nil
	})
}

// Components returns the persisted component configs: the desired state,
// not what is currently running.
func (m *Manager) Components() []component.Config {
	return m.store.Components()
}

// Bindings returns the persisted binding configs.
func (m *Manager) Bindings() []binding.Config {
	return m.store.Bindings()
}

// BindingStatuses returns the live state of every binding, sorted by key.
func (m *Manager) BindingStatuses(ctx context.Context) ([]binding.Status, error) {
	var out []binding.Status
	err := m.do(ctx, func() error {
		out = make([]binding.Status, 0, len(m.bindings))
		for _, b := range m.bindings {
			out = append(out, b.Status())
		}
		slices.SortFunc(out, func(a, b binding.Status) int {
			return strings.Compare(a.Key(), b.Key())
		})
		return nil
	})
	return out, err
}

// Component returns live information about a running component.
//
// Returns:
//   - component.ErrNotFound if the id is not registered
func (m *Manager) Component(ctx context.Context, id string) (component.Info, error) {
	var info component.Info
	err := m.do(ctx, func() error {
		h, ok := m.registry.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", component.ErrNotFound, id)
		}
		info = h.Info()
		return nil
	})
	return info, err
}

// LiveComponents returns information about every running component in
// registration order.
func (m *Manager) LiveComponents(ctx context.Context) ([]component.Info, error) {
	var out []component.Info
	err := m.do(ctx, func() error {
		out = make([]component.Info, 0, m.registry.Len())
		for h := range m.registry.Components() {
			out = append(out, h.Info())
		}
		return nil
	})
	return out, err
}

// Skipped returns the persisted components that could not be built, with
// the reason.
func (m *Manager) Skipped(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := m.do(ctx, func() error {
		out = make(map[string]string, len(m.skipped))
		for id, reason := range m.skipped {
			out[id] = reason.Error()
		}
		return nil
	})
	return out, err
}

// ExecuteAction invokes an action on a running component.
//
// Returns:
//   - component.ErrNotFound if the id is not registered
//   - host errors (ErrUnknownMember, ErrTypeMismatch) otherwise
func (m *Manager) ExecuteAction(ctx context.Context, id, action string, value any) error {
	return m.do(ctx, func() error {
		h, ok := m.registry.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", component.ErrNotFound, id)
		}
		return h.ExecuteAction(action, value)
	})
}

// Plugins lists the plugins available to this instance.
func (m *Manager) Plugins() []plugin.Info {
	metas := m.catalog.List(m.opts.Instance)
	out := make([]plugin.Info, 0, len(metas))
	for _, meta := range metas {
		out = append(out, meta.Info())
	}
	return out
}

// Save writes the store immediately instead of waiting for the debounce.
func (m *Manager) Save(ctx context.Context) error {
	return m.sync.Flush(ctx)
}

// Close closes every binding, unregisters and destroys every component and
// writes pending store changes. The persisted configuration is untouched.
func (m *Manager) Close(ctx context.Context) error {
	err := m.loop.Do(ctx, func() error {
		for key, b := range m.bindings {
			b.Close()
			delete(m.bindings, key)
		}

		for _, h := range slices.Collect(m.registry.Components()) {
			if _, err := m.registry.Remove(h.ID()); err != nil {
				continue
			}
			if err := h.Destroy(); err != nil {
				m.logger.Warn("component logic failed to close", "component_id", h.ID(), "error", err)
			}
		}
		m.initialised = false
		return nil
	})
	if err != nil {
		m.logger.Warn("failed to close components", "error", err)
	}

	return m.sync.Close(ctx)
}

// do runs fn on the loop once Init has completed.
func (m *Manager) do(ctx context.Context, fn func() error) error {
	return m.loop.Do(ctx, func() error {
		if !m.initialised {
			return ErrNotInitialised
		}
		return fn()
	})
}

func (m *Manager) newHost(cfg component.Config) (*component.Host, error) {
	meta, err := m.registry.GetPlugin(m.opts.Instance, cfg.Plugin)
	if err != nil {
		return nil, err
	}
	return component.NewHost(cfg.ID, meta, cfg.Config,
		component.WithInstance(m.opts.Instance),
		component.WithPoster(m.loop.Post),
		component.WithHostLogger(m.logger),
	)
}

func (m *Manager) bindingOptions() []binding.Option {
	opts := []binding.Option{binding.WithLogger(m.logger)}
	return append(opts, m.bindingOpts...)
}
