package component

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// recorder is a hand-written plugin logic that records every call.
type recorder struct {
	sink     plugin.StateSink
	executed []string
	closed   bool
	execErr  error
}

func (r *recorder) Execute(action string, value any) error {
	r.executed = append(r.executed, action)
	if r.execErr != nil {
		return r.execErr
	}
	if action == "setTemp" {
		return r.sink.Set("temp", value)
	}
	return nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func thermostatPlugin(t *testing.T, rec **recorder) *plugin.Metadata {
	t.Helper()

	meta := &plugin.Metadata{
		Module: "test",
		Name:   "thermostat",
		Members: []plugin.Member{
			{Name: "temp", Type: plugin.MemberState, ValueType: plugin.ValueFloat},
			{Name: "setTemp", Type: plugin.MemberAction, ValueType: plugin.ValueFloat},
			{Name: "power", Type: plugin.MemberAction, ValueType: plugin.ValueBool},
		},
		ConfigItems: []plugin.ConfigItem{
			{Name: "room", ValueType: plugin.ValueString, Required: true},
		},
		Factory: func(_ map[string]any, sink plugin.StateSink) (plugin.Logic, error) {
			r := &recorder{sink: sink}
			if rec != nil {
				*rec = r
			}
			return r, nil
		},
	}
	if err := meta.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return meta
}

func newTestHost(t *testing.T, id string) (*Host, *recorder) {
	t.Helper()

	var rec *recorder
	h, err := NewHost(id, thermostatPlugin(t, &rec), map[string]any{"room": "hall"})
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	return h, rec
}

func TestNewHost_InvalidConfig(t *testing.T) {
	meta := thermostatPlugin(t, nil)

	tests := []struct {
		name   string
		id     string
		config map[string]any
	}{
		{"missing required", "a", map[string]any{}},
		{"wrong type", "a", map[string]any{"room": 3.0}},
		{"unknown item", "a", map[string]any{"room": "hall", "x": true}},
		{"empty id", "", map[string]any{"room": "hall"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHost(tt.id, meta, tt.config)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewHost() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewHost_FactoryError(t *testing.T) {
	meta := &plugin.Metadata{
		Module: "test",
		Name:   "broken",
		Factory: func(map[string]any, plugin.StateSink) (plugin.Logic, error) {
			return nil, errors.New("no hardware")
		},
	}
	if err := meta.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if _, err := NewHost("b", meta, nil); !errors.Is(err, ErrPluginFailed) {
		t.Errorf("NewHost() error = %v, want ErrPluginFailed", err)
	}
}

func TestHost_StateStartsUnset(t *testing.T) {
	h, _ := newTestHost(t, "a")

	v, err := h.GetState("temp")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if v != nil {
		t.Errorf("GetState() = %v, want nil", v)
	}

	if _, err := h.GetState("setTemp"); !errors.Is(err, ErrUnknownMember) {
		t.Errorf("GetState(action) error = %v, want ErrUnknownMember", err)
	}
}

func TestHost_ExecuteAction(t *testing.T) {
	h, rec := newTestHost(t, "a")

	tests := []struct {
		name    string
		member  string
		value   any
		wantErr error
	}{
		{"valid", "setTemp", 21.5, nil},
		{"unknown member", "reboot", true, ErrUnknownMember},
		{"state is not an action", "temp", 21.5, ErrUnknownMember},
		{"type mismatch", "power", "on", ErrTypeMismatch},
		{"nil value", "setTemp", nil, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.ExecuteAction(tt.member, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ExecuteAction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if diff := cmp.Diff([]string{"setTemp"}, rec.executed); diff != "" {
		t.Errorf("executed mismatch (-want +got):\n%s", diff)
	}
}

func TestHost_StateEventsOnlyOnChange(t *testing.T) {
	h, _ := newTestHost(t, "a")

	type change struct {
		Member string
		Value  any
	}
	var got []change
	unsubscribe := h.OnState(func(member string, value any) {
		got = append(got, change{member, value})
	})

	for _, v := range []float64{20, 20, 21} {
		if err := h.ExecuteAction("setTemp", v); err != nil {
			t.Fatalf("ExecuteAction() error = %v", err)
		}
	}

	want := []change{{"temp", 20.0}, {"temp", 21.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state events mismatch (-want +got):\n%s", diff)
	}

	unsubscribe()
	unsubscribe()
	if err := h.ExecuteAction("setTemp", 22.0); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("received %d events after unsubscribe, want 2", len(got))
	}

	v, _ := h.GetState("temp")
	if v != 22.0 {
		t.Errorf("GetState() = %v, want 22", v)
	}
}

func TestHost_UnsubscribeDuringEmission(t *testing.T) {
	h, _ := newTestHost(t, "a")

	var secondCalls int
	var unsubSecond func()
	h.OnState(func(string, any) { unsubSecond() })
	unsubSecond = h.OnState(func(string, any) { secondCalls++ })

	if err := h.ExecuteAction("setTemp", 1.0); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}
	if secondCalls != 0 {
		t.Errorf("removed listener called %d times, want 0", secondCalls)
	}
}

func TestHost_Destroy(t *testing.T) {
	h, rec := newTestHost(t, "a")

	if err := h.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if !rec.closed {
		t.Error("plugin logic not closed")
	}
	if err := h.Destroy(); err != nil {
		t.Errorf("second Destroy() error = %v", err)
	}

	if _, err := h.GetState("temp"); !errors.Is(err, ErrDestroyed) {
		t.Errorf("GetState() error = %v, want ErrDestroyed", err)
	}
	if err := h.ExecuteAction("setTemp", 1.0); !errors.Is(err, ErrDestroyed) {
		t.Errorf("ExecuteAction() error = %v, want ErrDestroyed", err)
	}
	if err := rec.sink.Set("temp", 1.0); !errors.Is(err, ErrDestroyed) {
		t.Errorf("sink.Set() error = %v, want ErrDestroyed", err)
	}
}

func TestHost_SinkPost(t *testing.T) {
	var queued []func()
	var rec *recorder
	h, err := NewHost("a", thermostatPlugin(t, &rec), map[string]any{"room": "hall"},
		WithPoster(func(fn func()) { queued = append(queued, fn) }),
		WithInstance("hall-01"))
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}

	rec.sink.Post(func() { _ = rec.sink.Set("temp", 5.0) })
	if v, _ := h.GetState("temp"); v != nil {
		t.Fatalf("posted function ran before the loop drained it")
	}
	for _, fn := range queued {
		fn()
	}
	if v, _ := h.GetState("temp"); v != 5.0 {
		t.Errorf("GetState() = %v, want 5", v)
	}
	if h.Info().Instance != "hall-01" {
		t.Errorf("Info().Instance = %q, want hall-01", h.Info().Instance)
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	reg := NewRegistry(plugin.NewCatalog())

	var events []string
	reg.Subscribe(func(ev Event) {
		events = append(events, string(ev.Type)+":"+ev.Component.ID())
	})

	a, _ := newTestHost(t, "a")
	b, _ := newTestHost(t, "b")

	if err := reg.Add(a); err != nil {
		t.Fatalf("Add(a) error = %v", err)
	}
	if err := reg.Add(b); err != nil {
		t.Fatalf("Add(b) error = %v", err)
	}

	dup, _ := newTestHost(t, "a")
	if err := reg.Add(dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add(dup) error = %v, want ErrDuplicateID", err)
	}
	if got, _ := reg.Get("a"); got != a {
		t.Error("duplicate add replaced the registered host")
	}

	removed, err := reg.Remove("a")
	if err != nil {
		t.Fatalf("Remove(a) error = %v", err)
	}
	if removed != a {
		t.Error("Remove() returned a different host")
	}
	if _, err := reg.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(a) again error = %v, want ErrNotFound", err)
	}

	want := []string{"component-added:a", "component-added:b", "component-removed:a"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistry_ListenersCompleteBeforeReturn(t *testing.T) {
	reg := NewRegistry(plugin.NewCatalog())
	a, _ := newTestHost(t, "a")

	var seenInside bool
	reg.Subscribe(func(ev Event) {
		if ev.Type == EventRemoved {
			_, stillThere := reg.Get("a")
			seenInside = !stillThere
			// The host is still usable during tear-down.
			if _, err := ev.Component.GetState("temp"); err != nil {
				t.Errorf("GetState() during removal error = %v", err)
			}
		}
	})

	_ = reg.Add(a)
	_, _ = reg.Remove("a")
	if !seenInside {
		t.Error("listener did not run before Remove returned")
	}
}

func TestRegistry_ComponentsSnapshot(t *testing.T) {
	reg := NewRegistry(plugin.NewCatalog())
	for _, id := range []string{"a", "b", "c"} {
		h, _ := newTestHost(t, id)
		if err := reg.Add(h); err != nil {
			t.Fatalf("Add(%s) error = %v", id, err)
		}
	}

	seq := reg.Components()

	var ids []string
	for h := range seq {
		ids = append(ids, h.ID())
		if h.ID() == "a" {
			// Removal mid-iteration does not affect the running snapshot.
			_, _ = reg.Remove("c")
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Errorf("first pass mismatch (-want +got):\n%s", diff)
	}

	// Restarting the sequence takes a fresh snapshot.
	ids = ids[:0]
	for h := range seq {
		ids = append(ids, h.ID())
	}
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("second pass = %v, want [a b]", ids)
	}
}

func TestRegistry_GetPlugin(t *testing.T) {
	catalog := plugin.NewCatalog()
	if err := catalog.Register("hall", thermostatPlugin(t, nil)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	reg := NewRegistry(catalog)

	if _, err := reg.GetPlugin("hall", "test/thermostat"); err != nil {
		t.Errorf("GetPlugin() error = %v", err)
	}
	if _, err := reg.GetPlugin("hall", "test/missing"); !errors.Is(err, plugin.ErrPluginNotFound) {
		t.Errorf("GetPlugin() error = %v, want plugin.ErrPluginNotFound", err)
	}
}

func TestConfig_DeepCopy(t *testing.T) {
	orig := Config{ID: "a", Plugin: "test/thermostat", Config: map[string]any{
		"nested": map[string]any{"k": "v"},
	}}
	cp := orig.DeepCopy()
	cp.Config["nested"].(map[string]any)["k"] = "changed"

	if orig.Config["nested"].(map[string]any)["k"] != "v" {
		t.Error("DeepCopy shares nested maps")
	}
}
