package builtin

import (
	"fmt"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// Module is the module name of every builtin plugin.
const Module = "core"

// Member and config item names shared by the variable plugins.
const (
	StateValue  = "value"
	ActionSet   = "set"
	ConfigValue = "initial"
)

// Variable returns the metadata of the variable plugin for vt.
// The plugin is named "variable-<vt>".
func Variable(vt plugin.ValueType) *plugin.Metadata {
	return &plugin.Metadata{
		Module:      Module,
		Name:        "variable-" + string(vt),
		Description: fmt.Sprintf("Holds a single %s value", vt),
		Members: []plugin.Member{
			{Name: StateValue, Type: plugin.MemberState, ValueType: vt, Description: "Current value"},
			{Name: ActionSet, Type: plugin.MemberAction, ValueType: vt, Description: "Replace the value"},
		},
		ConfigItems: []plugin.ConfigItem{
			{Name: ConfigValue, ValueType: vt, Description: "Value published when the component starts"},
		},
		Factory: newVariable,
	}
}

// variable publishes whatever it is told to set.
type variable struct {
	sink plugin.StateSink
}

func newVariable(config map[string]any, sink plugin.StateSink) (plugin.Logic, error) {
	if initial, ok := config[ConfigValue]; ok && initial != nil {
		if err := sink.Set(StateValue, initial); err != nil {
			return nil, err
		}
	}
	return &variable{sink: sink}, nil
}

func (v *variable) Execute(action string, value any) error {
	if action != ActionSet {
		return fmt.Errorf("variable: unsupported action %q", action)
	}
	return v.sink.Set(StateValue, value)
}

func (v *variable) Close() error { return nil }
