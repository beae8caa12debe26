package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Metadata is the declarative contract of a plugin: its members and
// configuration parameters. It is immutable once registered with a Catalog;
// every component host of the plugin references the same value.
type Metadata struct {
	Module      string
	Name        string
	Description string
	Members     []Member
	ConfigItems []ConfigItem

	// Factory creates the plugin's logic. A nil Factory yields a passive
	// plugin whose actions are accepted and ignored.
	Factory Factory `json:"-"`

	members map[string]Member
	config  map[string]ConfigItem
}

// ID returns the "module/name" identifier components use to reference the plugin.
func (m *Metadata) ID() string {
	return m.Module + "/" + m.Name
}

// ParseID splits a plugin identifier into module and plugin name.
func ParseID(id string) (module, name string, err error) {
	module, name, ok := strings.Cut(id, "/")
	if !ok || module == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q is not module/name", ErrInvalidPluginID, id)
	}
	return module, name, nil
}

// Validate checks names and value types and builds the lookup indexes.
// Catalog.Register calls it; callers only need it for standalone metadata.
func (m *Metadata) Validate() error {
	var errs []error

	if m.Module == "" || strings.Contains(m.Module, "/") {
		errs = append(errs, fmt.Errorf("module %q is invalid", m.Module))
	}
	if m.Name == "" || strings.Contains(m.Name, "/") {
		errs = append(errs, fmt.Errorf("name %q is invalid", m.Name))
	}

	members := make(map[string]Member, len(m.Members))
	for _, mem := range m.Members {
		if mem.Name == "" {
			errs = append(errs, errors.New("member with empty name"))
			continue
		}
		if _, dup := members[mem.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate member %q", mem.Name))
			continue
		}
		if mem.Type != MemberState && mem.Type != MemberAction {
			errs = append(errs, fmt.Errorf("member %q has invalid type %q", mem.Name, mem.Type))
		}
		if !mem.ValueType.Valid() {
			errs = append(errs, fmt.Errorf("member %q has invalid value type %q", mem.Name, mem.ValueType))
		}
		members[mem.Name] = mem
	}

	items := make(map[string]ConfigItem, len(m.ConfigItems))
	for _, item := range m.ConfigItems {
		if item.Name == "" {
			errs = append(errs, errors.New("config item with empty name"))
			continue
		}
		if _, dup := items[item.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate config item %q", item.Name))
			continue
		}
		if !item.ValueType.Valid() {
			errs = append(errs, fmt.Errorf("config item %q has invalid value type %q", item.Name, item.ValueType))
		}
		if item.Default != nil && !item.ValueType.Check(item.Default, item.Options) {
			errs = append(errs, fmt.Errorf("config item %q default does not match %s", item.Name, item.ValueType))
		}
		items[item.Name] = item
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: plugin %s: %w", ErrInvalidMetadata, m.ID(), errors.Join(errs...))
	}

	m.members = members
	m.config = items
	return nil
}

// Member looks up a member by name.
func (m *Metadata) Member(name string) (Member, bool) {
	mem, ok := m.members[name]
	return mem, ok
}

// StateMember looks up a member that is declared as state.
func (m *Metadata) StateMember(name string) (Member, bool) {
	mem, ok := m.members[name]
	if !ok || mem.Type != MemberState {
		return Member{}, false
	}
	return mem, true
}

// ActionMember looks up a member that is declared as an action.
func (m *Metadata) ActionMember(name string) (Member, bool) {
	mem, ok := m.members[name]
	if !ok || mem.Type != MemberAction {
		return Member{}, false
	}
	return mem, true
}

// ResolveConfig validates a component configuration against the plugin's
// configuration items and returns a copy completed with defaults.
//
// Unknown keys, missing required items and values of the wrong type are
// all reported in one error.
func (m *Metadata) ResolveConfig(cfg map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(m.config))
	var errs []error

	for key := range cfg {
		if _, ok := m.config[key]; !ok {
			errs = append(errs, fmt.Errorf("unknown config item %q", key))
		}
	}

	for _, item := range m.ConfigItems {
		value, ok := cfg[item.Name]
		if !ok || value == nil {
			switch {
			case item.Default != nil:
				resolved[item.Name] = item.Default
			case item.Required:
				errs = append(errs, fmt.Errorf("config item %q is required", item.Name))
			}
			continue
		}
		if !item.ValueType.Check(value, item.Options) {
			errs = append(errs, fmt.Errorf("config item %q must be %s", item.Name, item.ValueType))
			continue
		}
		resolved[item.Name] = value
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return resolved, nil
}

// Info is a serialisable description of a plugin for listings.
type Info struct {
	ID          string       `json:"id"`
	Description string       `json:"description,omitempty"`
	Members     []Member     `json:"members"`
	ConfigItems []ConfigItem `json:"configItems"`
}

// Info returns a serialisable copy of the metadata.
func (m *Metadata) Info() Info {
	return Info{
		ID:          m.ID(),
		Description: m.Description,
		Members:     append([]Member(nil), m.Members...),
		ConfigItems: append([]ConfigItem(nil), m.ConfigItems...),
	}
}
