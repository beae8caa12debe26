package builtin

import (
	"fmt"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// All returns fresh metadata for every builtin plugin.
func All() []*plugin.Metadata {
	return []*plugin.Metadata{
		Variable(plugin.ValueBool),
		Variable(plugin.ValueString),
		Variable(plugin.ValueInteger),
		Variable(plugin.ValueFloat),
		Ticker(),
	}
}

// Register adds every builtin plugin to catalog under instance.
func Register(catalog *plugin.Catalog, instance string) error {
	for _, meta := range All() {
		if err := catalog.Register(instance, meta); err != nil {
			return fmt.Errorf("registering %s: %w", meta.ID(), err)
		}
	}
	return nil
}
