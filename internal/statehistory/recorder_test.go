package statehistory

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/influxdb"
)

// mockWriter accepts every non-nil value.
type mockWriter struct {
	mu     sync.Mutex
	points []influxdb.ComponentState
}

func (w *mockWriter) WriteComponentState(s influxdb.ComponentState) bool {
	if s.Value == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, s)
	return true
}

func TestRecorder(t *testing.T) {
	w := &mockWriter{}
	rec := NewRecorder(w, "hall", nil)
	rec.Start()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := component.Change{ComponentID: "sensor", Plugin: "test/climate", Time: ts}

	added := base
	added.Kind = component.ChangeAdded
	added.State = map[string]any{"temp": 20.5, "humidity": 40.0}
	rec.Observe(added)

	changed := base
	changed.Kind = component.ChangeState
	changed.Member = "temp"
	changed.Value = 21.0
	rec.Observe(changed)

	cleared := changed
	cleared.Value = nil
	rec.Observe(cleared)

	removed := base
	removed.Kind = component.ChangeRemoved
	rec.Observe(removed)

	rec.Stop()

	point := func(member string, value any) influxdb.ComponentState {
		return influxdb.ComponentState{
			Instance: "hall", ComponentID: "sensor", Plugin: "test/climate",
			Member: member, Value: value, Time: ts,
		}
	}
	want := []influxdb.ComponentState{
		point("temp", 20.5),
		point("humidity", 40.0),
		point("temp", 21.0),
	}
	sortPoints := cmpopts.SortSlices(func(a, b influxdb.ComponentState) bool {
		if a.Member != b.Member {
			return a.Member < b.Member
		}
		return a.Value.(float64) < b.Value.(float64)
	})
	if diff := cmp.Diff(want, w.points, sortPoints); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if got := rec.Written(); got != 3 {
		t.Errorf("Written() = %d, want 3", got)
	}

	// Ignored after Stop.
	rec.Observe(changed)
	if got := len(w.points); got != 3 {
		t.Errorf("points after Stop = %d, want 3", got)
	}
}

func TestRecorder_QueueFull(t *testing.T) {
	w := &mockWriter{}
	rec := NewRecorder(w, "hall", nil)

	// Without a running worker the queue fills up and the rest is dropped.
	for range defaultQueueSize + 5 {
		rec.Observe(component.Change{Kind: component.ChangeState, ComponentID: "c", Member: "m", Value: 1.0})
	}
	if got := rec.Dropped(); got != 5 {
		t.Errorf("Dropped() = %d, want 5", got)
	}

	rec.Start()
	rec.Stop()
	if got := rec.Written(); got != defaultQueueSize {
		t.Errorf("Written() = %d, want %d", got, defaultQueueSize)
	}
}
