package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the item set in memory. It is used by tests and by
// deployments that persist nothing.
type MemoryBackend struct {
	mu      sync.Mutex
	items   []Item
	saves   int
	saveErr error
}

// NewMemoryBackend creates a backend pre-loaded with items.
func NewMemoryBackend(items ...Item) *MemoryBackend {
	return &MemoryBackend{items: cloneItems(items)}
}

// Load returns a copy of the saved items.
func (b *MemoryBackend) Load(context.Context) ([]Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneItems(b.items), nil
}

// Save replaces the held items.
func (b *MemoryBackend) Save(_ context.Context, items []Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.saves++
	if b.saveErr != nil {
		return b.saveErr
	}
	b.items = cloneItems(items)
	return nil
}

// FailSaves makes every later Save return err. A nil err restores
// normal saves.
func (b *MemoryBackend) FailSaves(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveErr = err
}

// Saves returns how many times Save has been called.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func cloneItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case ItemComponent:
			out = append(out, ComponentItem(item.Component.DeepCopy()))
		case ItemBinding:
			out = append(out, BindingItem(*item.Binding))
		default:
			out = append(out, item)
		}
	}
	return out
}
