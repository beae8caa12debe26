package influxdb

import (
	"encoding/json"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementComponentState is the measurement holding component state history.
const MeasurementComponentState = "component_state"

// ComponentState is one recorded state value of a component member.
type ComponentState struct {
	Instance    string
	ComponentID string
	Plugin      string
	Member      string
	Value       any
	Time        time.Time
}

// WriteComponentState records a state change.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Values that have no field form (nil, a cleared state) are skipped.
//
// Returns:
//   - bool: true if a point was queued
func (c *Client) WriteComponentState(s ComponentState) bool {
	if !c.IsConnected() {
		return false
	}

	point, ok := ComponentStatePoint(s)
	if !ok {
		return false
	}
	c.writeAPI.WritePoint(point)
	return true
}

// ComponentStatePoint builds the InfluxDB point for s.
//
// Tags: instance, component_id, plugin, member.
// Fields depend on the value so that each field keeps a single type:
//   - numbers: value (float)
//   - bools: value (1 or 0) and bool
//   - strings: text
//   - lists and objects: text, JSON encoded
func ComponentStatePoint(s ComponentState) (*write.Point, bool) {
	fields, ok := stateFields(s.Value)
	if !ok {
		return nil, false
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementComponentState,
		map[string]string{
			"instance":     s.Instance,
			"component_id": s.ComponentID,
			"plugin":       s.Plugin,
			"member":       s.Member,
		},
		fields,
		ts,
	), true
}

func stateFields(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case bool:
		numeric := 0.0
		if v {
			numeric = 1
		}
		return map[string]any{"value": numeric, "bool": v}, true
	case float64:
		return map[string]any{"value": v}, true
	case float32:
		return map[string]any{"value": float64(v)}, true
	case int:
		return map[string]any{"value": float64(v)}, true
	case int64:
		return map[string]any{"value": float64(v)}, true
	case string:
		return map[string]any{"text": v}, true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return map[string]any{"text": string(data)}, true
	}
}
