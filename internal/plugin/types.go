package plugin

import (
	"math"
	"slices"
	"strings"
)

// ValueType is the closed set of value types shared by state members,
// action members and configuration items. Bindings compare value types
// of their two halves for compatibility.
type ValueType string

// Value types.
const (
	ValueBool    ValueType = "bool"
	ValueString  ValueType = "string"
	ValueInteger ValueType = "integer"
	ValueFloat   ValueType = "float"
	ValueEnum    ValueType = "enum"
	ValueObject  ValueType = "object"
)

// AllValueTypes returns every supported value type.
func AllValueTypes() []ValueType {
	return []ValueType{ValueBool, ValueString, ValueInteger, ValueFloat, ValueEnum, ValueObject}
}

// Valid reports whether v is one of the supported value types.
func (v ValueType) Valid() bool {
	return slices.Contains(AllValueTypes(), v)
}

// Check reports whether value conforms to v.
//
// Numbers decoded from JSON arrive as float64, so integer accepts any
// integral float and float accepts every numeric kind. For enum, options
// restricts the accepted strings when non-empty. nil never conforms.
func (v ValueType) Check(value any, options []string) bool {
	if value == nil {
		return false
	}

	switch v {
	case ValueBool:
		_, ok := value.(bool)
		return ok
	case ValueString:
		_, ok := value.(string)
		return ok
	case ValueInteger:
		return isInteger(value)
	case ValueFloat:
		return isNumber(value)
	case ValueEnum:
		s, ok := value.(string)
		if !ok {
			return false
		}
		return len(options) == 0 || slices.Contains(options, s)
	case ValueObject:
		switch value.(type) {
		case map[string]any, []any:
			return true
		}
		return false
	default:
		return false
	}
}

func isInteger(value any) bool {
	switch n := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return !math.IsInf(n, 0) && n == math.Trunc(n)
	case float32:
		f := float64(n)
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	default:
		return false
	}
}

func isNumber(value any) bool {
	switch n := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return true
	case float64:
		return !math.IsNaN(n)
	default:
		return false
	}
}

// MemberType distinguishes observable state from invocable actions.
type MemberType string

// Member types.
const (
	MemberState  MemberType = "state"
	MemberAction MemberType = "action"
)

// Member declares one state or action member of a plugin.
type Member struct {
	Name        string     `json:"name" yaml:"name"`
	Type        MemberType `json:"type" yaml:"type"`
	ValueType   ValueType  `json:"valueType" yaml:"value_type"`
	Options     []string   `json:"options,omitempty" yaml:"options,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// TypeName returns the member's full value type. Enum members with options
// include them sorted, e.g. "enum{off,on}".
func (m Member) TypeName() string {
	if m.ValueType != ValueEnum || len(m.Options) == 0 {
		return string(m.ValueType)
	}
	opts := slices.Clone(m.Options)
	slices.Sort(opts)
	opts = slices.Compact(opts)
	return string(m.ValueType) + "{" + strings.Join(opts, ",") + "}"
}

// Accepts reports whether every value src can hold is accepted by m.
//
// Value types must be equal. For enum, an m without options accepts any
// string; otherwise src must declare options and each of them must be one
// of m's options.
func (m Member) Accepts(src Member) bool {
	if m.ValueType != src.ValueType {
		return false
	}
	if m.ValueType != ValueEnum || len(m.Options) == 0 {
		return true
	}
	if len(src.Options) == 0 {
		return false
	}
	for _, opt := range src.Options {
		if !slices.Contains(m.Options, opt) {
			return false
		}
	}
	return true
}

// ConfigItem declares one configuration parameter of a plugin.
type ConfigItem struct {
	Name        string    `json:"name" yaml:"name"`
	ValueType   ValueType `json:"valueType" yaml:"value_type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// StateSink is handed to plugin logic so it can publish state values.
//
// Set must only be called while the runtime is executing the plugin,
// i.e. from inside Factory or Logic.Execute. Logic running its own
// goroutines uses Post to schedule work onto the runtime's event loop,
// where calling Set is allowed again.
type StateSink interface {
	// Set records a new value for a state member and notifies listeners
	// when the value changed.
	Set(member string, value any) error

	// Post schedules fn on the runtime event loop. It never blocks.
	Post(fn func())
}

// Logic is the opaque behaviour behind a plugin.
type Logic interface {
	// Execute performs an action. The runtime has already checked that
	// action is an action member and that value matches its value type.
	Execute(action string, value any) error

	// Close releases resources held by the logic.
	Close() error
}

// Factory instantiates plugin logic for one component.
// config has already been validated and completed with defaults.
type Factory func(config map[string]any, sink StateSink) (Logic, error)
