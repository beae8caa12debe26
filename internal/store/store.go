package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
)

// Backend persists the full item set of a store.
//
// Implementations replace everything on Save; there are no partial writes.
type Backend interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
}

// Store is the durable record of desired components and bindings.
//
// It holds configuration, not live state: a component whose plugin is
// missing stays in the store even though it never reaches the registry.
// Mutations only change memory and mark the store dirty; a SyncManager
// writes them back.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The debounce timer of the
//     SyncManager saves from its own goroutine.
type Store struct {
	backend Backend

	mu         sync.Mutex
	components map[string]component.Config
	bindings   map[string]binding.Config
	dirty      bool
	generation uint64
	onChange   func()

	// saveMu serialises backend saves so a timer tick and an explicit
	// flush never write concurrently.
	saveMu sync.Mutex
}

// New creates an empty store on top of backend.
func New(backend Backend) *Store {
	return &Store{
		backend:    backend,
		components: make(map[string]component.Config),
		bindings:   make(map[string]binding.Config),
	}
}

// Load replaces the in-memory maps with the backend's items.
// The store is clean afterwards.
//
// Returns:
//   - ErrUnknownItemType if an item has an unrecognised type tag
//   - ErrLoadFailed wrapping any other backend error
func (s *Store) Load(ctx context.Context) error {
	items, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	components := make(map[string]component.Config)
	bindings := make(map[string]binding.Config)
	for _, item := range items {
		switch item.Type {
		case ItemComponent:
			components[item.Component.ID] = item.Component.DeepCopy()
		case ItemBinding:
			bindings[item.Binding.Key()] = *item.Binding
		default:
			return fmt.Errorf("%w: %q", ErrUnknownItemType, item.Type)
		}
	}

	s.mu.Lock()
	s.components = components
	s.bindings = bindings
	s.dirty = false
	s.generation++
	s.mu.Unlock()
	return nil
}

// SetComponent stores c under its id, replacing any previous config.
func (s *Store) SetComponent(c component.Config) {
	s.mutate(func() { s.components[c.ID] = c.DeepCopy() })
}

// RemoveComponent deletes the component config with id.
// It reports whether anything was removed.
func (s *Store) RemoveComponent(id string) bool {
	var removed bool
	s.mutate(func() {
		_, removed = s.components[id]
		delete(s.components, id)
	})
	return removed
}

// AddBinding stores b under its key, replacing an identical entry.
func (s *Store) AddBinding(b binding.Config) {
	s.mutate(func() { s.bindings[b.Key()] = b })
}

// RemoveBinding deletes the binding config with the same key as b.
// It reports whether anything was removed.
func (s *Store) RemoveBinding(b binding.Config) bool {
	var removed bool
	s.mutate(func() {
		_, removed = s.bindings[b.Key()]
		delete(s.bindings, b.Key())
	})
	return removed
}

// Component returns the stored config for id.
func (s *Store) Component(id string) (component.Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.components[id]
	if !ok {
		return component.Config{}, false
	}
	return c.DeepCopy(), true
}

// HasComponent reports whether a config is stored for id.
func (s *Store) HasComponent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.components[id]
	return ok
}

// HasBinding reports whether a binding with key is stored.
func (s *Store) HasBinding(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.bindings[key]
	return ok
}

// Components returns a snapshot of the stored component configs, sorted by id.
func (s *Store) Components() []component.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.componentsLocked()
}

func (s *Store) componentsLocked() []component.Config {
	out := make([]component.Config, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c.DeepCopy())
	}
	slices.SortFunc(out, func(a, b component.Config) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Bindings returns a snapshot of the stored binding configs, sorted by key.
func (s *Store) Bindings() []binding.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindingsLocked()
}

func (s *Store) bindingsLocked() []binding.Config {
	out := make([]binding.Config, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b binding.Config) int { return strings.Compare(a.Key(), b.Key()) })
	return out
}

// Items returns the full item set in save order: components, then bindings.
func (s *Store) Items() []Item {
	items, _ := s.snapshot()
	return items
}

// snapshot returns the item set together with the generation it reflects.
func (s *Store) snapshot() ([]Item, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	components := s.componentsLocked()
	bindings := s.bindingsLocked()

	items := make([]Item, 0, len(components)+len(bindings))
	for _, c := range components {
		items = append(items, ComponentItem(c))
	}
	for _, b := range bindings {
		items = append(items, BindingItem(b))
	}
	return items, s.generation
}

// Dirty reports whether there are mutations not yet saved.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Save writes the current item set to the backend.
//
// The dirty flag is cleared only if the save succeeded and no mutation
// happened while it was in flight. On failure the store stays dirty so a
// later save retries.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	items, gen := s.snapshot()
	if err := s.backend.Save(ctx, items); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	s.mu.Lock()
	if s.generation == gen {
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

// setOnChange installs the hook called after every mutation.
func (s *Store) setOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.dirty = true
	s.generation++
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}
