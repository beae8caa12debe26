package component

import "fmt"

// Config is the desired configuration of one component, as persisted by the
// store and accepted by the components.add procedure.
//
// The JSON field names are part of the store file format and must not change.
type Config struct {
	ID     string         `json:"id"`
	Plugin string         `json:"plugin"`
	Config map[string]any `json:"config"`
}

// Validate checks the fields that do not depend on plugin metadata.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if c.Plugin == "" {
		return fmt.Errorf("%w: plugin is required", ErrInvalidConfig)
	}
	return nil
}

// DeepCopy returns a copy whose config map can be modified independently.
func (c Config) DeepCopy() Config {
	out := c
	out.Config = deepCopyMap(c.Config)
	return out
}

// deepCopyMap copies nested maps and slices as produced by encoding/json.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// EventType identifies a registry lifecycle event.
type EventType string

// Registry lifecycle events.
const (
	EventAdded   EventType = "component-added"
	EventRemoved EventType = "component-removed"
)

// Event is delivered to registry listeners.
type Event struct {
	Type      EventType
	Component *Host
}

// Listener receives registry lifecycle events. It runs synchronously inside
// Registry.Add or Registry.Remove.
type Listener func(Event)

// StateListener receives state changes of one host. It runs synchronously
// inside the plugin's call to StateSink.Set.
type StateListener func(member string, value any)

// Info is a point-in-time description of a live component.
type Info struct {
	ID       string         `json:"id"`
	Plugin   string         `json:"plugin"`
	Instance string         `json:"instance,omitempty"`
	Config   map[string]any `json:"config"`
	State    map[string]any `json:"state"`
}
