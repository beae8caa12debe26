package component

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// changeSummary drops timestamps so changes compare with cmp.
type changeSummary struct {
	Kind   ChangeKind
	ID     string
	Member string
	Value  any
}

func summarise(changes []Change) []changeSummary {
	out := make([]changeSummary, 0, len(changes))
	for _, c := range changes {
		out = append(out, changeSummary{Kind: c.Kind, ID: c.ComponentID, Member: c.Member, Value: c.Value})
	}
	return out
}

func TestWatch(t *testing.T) {
	reg := NewRegistry(plugin.NewCatalog())

	existing, _ := newTestHost(t, "existing")
	if err := reg.Add(existing); err != nil {
		t.Fatalf("Add(existing) error = %v", err)
	}

	var changes []Change
	stop := Watch(reg, func(c Change) { changes = append(changes, c) })

	later, _ := newTestHost(t, "later")
	if err := reg.Add(later); err != nil {
		t.Fatalf("Add(later) error = %v", err)
	}
	if err := later.ExecuteAction("setTemp", 21.5); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}
	if err := existing.ExecuteAction("setTemp", 19.0); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}
	if _, err := reg.Remove("later"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	// Detached on removal.
	if err := later.ExecuteAction("setTemp", 22.0); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}

	want := []changeSummary{
		{Kind: ChangeAdded, ID: "existing"},
		{Kind: ChangeAdded, ID: "later"},
		{Kind: ChangeState, ID: "later", Member: "temp", Value: 21.5},
		{Kind: ChangeState, ID: "existing", Member: "temp", Value: 19.0},
		{Kind: ChangeRemoved, ID: "later"},
	}
	if diff := cmp.Diff(want, summarise(changes)); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if changes[0].Plugin != "test/thermostat" {
		t.Errorf("Plugin = %q, want test/thermostat", changes[0].Plugin)
	}

	stop()
	changes = nil

	if err := existing.ExecuteAction("setTemp", 18.0); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}
	again, _ := newTestHost(t, "again")
	if err := reg.Add(again); err != nil {
		t.Fatalf("Add(again) error = %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes after stop = %v, want none", summarise(changes))
	}
}

func TestWatch_AddedCarriesState(t *testing.T) {
	reg := NewRegistry(plugin.NewCatalog())

	h, _ := newTestHost(t, "hall")
	if err := h.ExecuteAction("setTemp", 20.0); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}
	if err := reg.Add(h); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var added Change
	stop := Watch(reg, func(c Change) { added = c })
	defer stop()

	if diff := cmp.Diff(map[string]any{"temp": 20.0}, added.State); diff != "" {
		t.Errorf("State mismatch (-want +got):\n%s", diff)
	}
}
