package plugin

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Catalog holds registered plugin metadata, scoped by runtime instance.
//
// Each instance on the bus may provide a different set of plugins, so a
// lookup names both the instance and the "module/name" plugin id.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Metadata // instance -> id -> metadata
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		plugins: make(map[string]map[string]*Metadata),
	}
}

// Register validates meta and makes it available under instance.
//
// The metadata must not be modified after registration; hosts reference
// it directly.
//
// Returns:
//   - ErrInvalidMetadata if validation fails
//   - ErrDuplicatePlugin if the id is already registered for instance
func (c *Catalog) Register(instance string, meta *Metadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	scope, ok := c.plugins[instance]
	if !ok {
		scope = make(map[string]*Metadata)
		c.plugins[instance] = scope
	}

	id := meta.ID()
	if _, exists := scope[id]; exists {
		return fmt.Errorf("%w: %s on %s", ErrDuplicatePlugin, id, instance)
	}
	scope[id] = meta
	return nil
}

// Lookup returns the metadata registered under instance and id.
// Returns ErrPluginNotFound if either is unknown.
func (c *Catalog) Lookup(instance, id string) (*Metadata, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.plugins[instance][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrPluginNotFound, id, instance)
	}
	return meta, nil
}

// List returns the plugins registered under instance, sorted by id.
func (c *Catalog) List(instance string) []*Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Metadata, 0, len(c.plugins[instance]))
	for _, meta := range c.plugins[instance] {
		out = append(out, meta)
	}
	slices.SortFunc(out, func(a, b *Metadata) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}
