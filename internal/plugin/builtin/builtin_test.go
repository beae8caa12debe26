package builtin

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// fakeSink records state values. Posted functions are queued and run by
// drain, standing in for the event loop.
type fakeSink struct {
	mu     sync.Mutex
	state  map[string]any
	posted []func()
	setErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{state: make(map[string]any)}
}

func (s *fakeSink) Set(member string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.state[member] = value
	return nil
}

func (s *fakeSink) Post(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted = append(s.posted, fn)
}

func (s *fakeSink) get(member string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[member]
}

// drain runs every queued function and reports how many ran.
func (s *fakeSink) drain() int {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
	return len(posted)
}

func TestRegister(t *testing.T) {
	catalog := plugin.NewCatalog()
	if err := Register(catalog, "runtime-01"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, id := range []string{
		"core/variable-bool",
		"core/variable-string",
		"core/variable-integer",
		"core/variable-float",
		"core/ticker",
	} {
		if _, err := catalog.Lookup("runtime-01", id); err != nil {
			t.Errorf("Lookup(%s) error = %v", id, err)
		}
	}

	if err := Register(catalog, "runtime-01"); !errors.Is(err, plugin.ErrDuplicatePlugin) {
		t.Errorf("second Register() error = %v, want ErrDuplicatePlugin", err)
	}
}

func TestVariable(t *testing.T) {
	tests := []struct {
		name    string
		vt      plugin.ValueType
		config  map[string]any
		initial any
		set     any
	}{
		{name: "bool", vt: plugin.ValueBool, config: map[string]any{"initial": true}, initial: true, set: false},
		{name: "string", vt: plugin.ValueString, config: map[string]any{"initial": "idle"}, initial: "idle", set: "busy"},
		{name: "integer", vt: plugin.ValueInteger, config: map[string]any{"initial": float64(3)}, initial: float64(3), set: float64(4)},
		{name: "float without initial", vt: plugin.ValueFloat, config: map[string]any{}, initial: nil, set: 21.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := Variable(tt.vt)
			if err := meta.Validate(); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			sink := newFakeSink()
			logic, err := meta.Factory(tt.config, sink)
			if err != nil {
				t.Fatalf("Factory() error = %v", err)
			}
			defer logic.Close() //nolint:errcheck // Test cleanup

			if got := sink.get(StateValue); got != tt.initial {
				t.Errorf("initial value = %v, want %v", got, tt.initial)
			}
			if err := logic.Execute(ActionSet, tt.set); err != nil {
				t.Fatalf("Execute(set) error = %v", err)
			}
			if got := sink.get(StateValue); got != tt.set {
				t.Errorf("value after set = %v, want %v", got, tt.set)
			}
		})
	}
}

func TestVariable_UnknownAction(t *testing.T) {
	logic, err := Variable(plugin.ValueBool).Factory(map[string]any{}, newFakeSink())
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	if err := logic.Execute("toggle", true); err == nil {
		t.Error("Execute(toggle) error = nil, want error")
	}
}

func TestTicker(t *testing.T) {
	meta := Ticker()
	if err := meta.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	config, err := meta.ResolveConfig(map[string]any{ConfigInterval: float64(10)})
	if err != nil {
		t.Fatalf("ResolveConfig() error = %v", err)
	}

	sink := newFakeSink()
	logic, err := meta.Factory(config, sink)
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	defer logic.Close() //nolint:errcheck // Test cleanup

	if got := sink.get(StateEnabled); got != true {
		t.Errorf("enabled = %v, want true", got)
	}
	if got := sink.get(StateTicks); got != 0 {
		t.Errorf("ticks = %v, want 0", got)
	}

	// Ticks are only counted once the posted work runs.
	deadline := time.Now().Add(2 * time.Second)
	ran := 0
	for ran < 2 && time.Now().Before(deadline) {
		time.Sleep(15 * time.Millisecond)
		ran += sink.drain()
	}
	if ran < 2 {
		t.Fatalf("only %d ticks posted before deadline", ran)
	}
	if got := sink.get(StateTicks); got != ran {
		t.Errorf("ticks = %v, want %d", got, ran)
	}

	if err := logic.Execute(ActionEnable, false); err != nil {
		t.Fatalf("Execute(enable=false) error = %v", err)
	}
	if got := sink.get(StateEnabled); got != false {
		t.Errorf("enabled = %v, want false", got)
	}
	sink.drain()
	time.Sleep(40 * time.Millisecond)
	if n := sink.drain(); n != 0 {
		t.Errorf("%d ticks posted after disable, want 0", n)
	}
}

func TestTicker_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{name: "too fast", config: map[string]any{ConfigInterval: float64(1), ConfigEnabled: false}},
		{name: "fractional", config: map[string]any{ConfigInterval: 10.5, ConfigEnabled: false}},
		{name: "missing", config: map[string]any{ConfigEnabled: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Ticker().Factory(tt.config, newFakeSink()); err == nil {
				t.Error("Factory() error = nil, want error")
			}
		})
	}
}

func TestTicker_StartsDisabled(t *testing.T) {
	sink := newFakeSink()
	logic, err := Ticker().Factory(map[string]any{ConfigInterval: float64(10), ConfigEnabled: false}, sink)
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	defer logic.Close() //nolint:errcheck // Test cleanup

	time.Sleep(40 * time.Millisecond)
	if n := sink.drain(); n != 0 {
		t.Errorf("%d ticks posted while disabled, want 0", n)
	}
	if got := sink.get(StateEnabled); got != false {
		t.Errorf("enabled = %v, want false", got)
	}
}
