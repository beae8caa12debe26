package binding

import (
	"fmt"
	"strings"
)

// keySeparator joins the four identity fields of a binding. Component ids
// and member names never contain it.
const keySeparator = "|"

// Config identifies a binding by the state it reads and the action it drives.
//
// The four fields together are the binding's identity: two bindings with
// the same tuple are the same binding. The JSON field names are part of the
// store file format and must not change.
type Config struct {
	SourceID     string `json:"sourceId"`
	SourceState  string `json:"sourceState"`
	TargetID     string `json:"targetId"`
	TargetAction string `json:"targetAction"`
}

// Key returns the deterministic deduplication key of the binding.
func (c Config) Key() string {
	return strings.Join([]string{c.SourceID, c.SourceState, c.TargetID, c.TargetAction}, keySeparator)
}

// String implements fmt.Stringer.
func (c Config) String() string {
	return c.SourceID + "." + c.SourceState + " -> " + c.TargetID + "." + c.TargetAction
}

// Validate checks that all four fields are present and free of the key separator.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"sourceId", c.SourceID},
		{"sourceState", c.SourceState},
		{"targetId", c.TargetID},
		{"targetAction", c.TargetAction},
	}

	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, f.name)
		}
		if strings.Contains(f.value, keySeparator) {
			return fmt.Errorf("%w: %s must not contain %q", ErrInvalidConfig, f.name, keySeparator)
		}
	}
	return nil
}
