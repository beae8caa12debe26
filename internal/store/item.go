package store

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
)

// ItemType tags the variant of a persisted Item.
type ItemType string

// Item types. The values are part of the store file format.
const (
	ItemComponent ItemType = "component"
	ItemBinding   ItemType = "binding"
)

// Item is one persisted entry: either a component config or a binding config.
// Exactly one of Component and Binding is set, matching Type.
type Item struct {
	Type      ItemType
	Component *component.Config
	Binding   *binding.Config
}

// ComponentItem wraps a component config as an Item.
func ComponentItem(c component.Config) Item {
	return Item{Type: ItemComponent, Component: &c}
}

// BindingItem wraps a binding config as an Item.
func BindingItem(b binding.Config) Item {
	return Item{Type: ItemBinding, Binding: &b}
}

// Key returns the map key the item is stored under: the component id or
// the binding 4-tuple key.
func (i Item) Key() string {
	switch i.Type {
	case ItemComponent:
		return i.Component.ID
	case ItemBinding:
		return i.Binding.Key()
	default:
		return ""
	}
}

type itemJSON struct {
	Type   ItemType        `json:"type"`
	Config json.RawMessage `json:"config"`
}

// MarshalJSON encodes the item as {"type": ..., "config": {...}}.
func (i Item) MarshalJSON() ([]byte, error) {
	raw, err := i.configJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(itemJSON{Type: i.Type, Config: raw})
}

// configJSON encodes only the config half of the item.
func (i Item) configJSON() (json.RawMessage, error) {
	var cfg any
	switch i.Type {
	case ItemComponent:
		if i.Component == nil {
			return nil, fmt.Errorf("%w: component item without config", ErrInvalidItem)
		}
		c := *i.Component
		if c.Config == nil {
			c.Config = map[string]any{}
		}
		cfg = c
	case ItemBinding:
		if i.Binding == nil {
			return nil, fmt.Errorf("%w: binding item without config", ErrInvalidItem)
		}
		cfg = i.Binding
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownItemType, i.Type)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	return raw, nil
}

// UnmarshalJSON decodes an item, rejecting unknown type tags with
// ErrUnknownItemType.
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	item, err := decodeItem(raw.Type, raw.Config)
	if err != nil {
		return err
	}
	*i = item
	return nil
}

// decodeItem builds an Item from its type tag and encoded config.
func decodeItem(t ItemType, config json.RawMessage) (Item, error) {
	switch t {
	case ItemComponent:
		var c component.Config
		if err := json.Unmarshal(config, &c); err != nil {
			return Item{}, fmt.Errorf("%w: component config: %w", ErrInvalidItem, err)
		}
		if err := c.Validate(); err != nil {
			return Item{}, fmt.Errorf("%w: %w", ErrInvalidItem, err)
		}
		return ComponentItem(c), nil
	case ItemBinding:
		var b binding.Config
		if err := json.Unmarshal(config, &b); err != nil {
			return Item{}, fmt.Errorf("%w: binding config: %w", ErrInvalidItem, err)
		}
		if err := b.Validate(); err != nil {
			return Item{}, fmt.Errorf("%w: %w", ErrInvalidItem, err)
		}
		return BindingItem(b), nil
	default:
		return Item{}, fmt.Errorf("%w: %q", ErrUnknownItemType, t)
	}
}

// EncodeItems renders items in the store file format: an indented JSON array.
func EncodeItems(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding store items: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeItems parses the store file format.
func DecodeItems(data []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}
