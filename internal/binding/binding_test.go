package binding

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/plugin"
)

// call is one recorded action invocation.
type call struct {
	Component string
	Action    string
	Value     any
}

// fakeLogic records actions into a shared log and lets tests drive state.
type fakeLogic struct {
	id   string
	sink plugin.StateSink
	log  *[]call
}

func (f *fakeLogic) Execute(action string, value any) error {
	*f.log = append(*f.log, call{f.id, action, value})
	return nil
}

func (f *fakeLogic) Close() error { return nil }

type fixture struct {
	t        *testing.T
	registry *component.Registry
	calls    []call
	logics   map[string]*fakeLogic
	sensor   *plugin.Metadata
	heater   *plugin.Metadata
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		registry: component.NewRegistry(plugin.NewCatalog()),
		logics:   make(map[string]*fakeLogic),
	}

	factory := func(cfg map[string]any, sink plugin.StateSink) (plugin.Logic, error) {
		l := &fakeLogic{id: cfg["name"].(string), sink: sink, log: &f.calls}
		f.logics[l.id] = l
		return l, nil
	}
	nameItem := plugin.ConfigItem{Name: "name", ValueType: plugin.ValueString, Required: true}

	f.sensor = &plugin.Metadata{
		Module: "test",
		Name:   "sensor",
		Members: []plugin.Member{
			{Name: "temp", Type: plugin.MemberState, ValueType: plugin.ValueFloat},
			{Name: "humidity", Type: plugin.MemberState, ValueType: plugin.ValueFloat},
			{Name: "mode", Type: plugin.MemberState, ValueType: plugin.ValueEnum, Options: []string{"on", "off"}},
		},
		ConfigItems: []plugin.ConfigItem{nameItem},
		Factory:     factory,
	}
	f.heater = &plugin.Metadata{
		Module: "test",
		Name:   "heater",
		Members: []plugin.Member{
			{Name: "setTemp", Type: plugin.MemberAction, ValueType: plugin.ValueFloat},
			{Name: "setPower", Type: plugin.MemberAction, ValueType: plugin.ValueBool},
			{Name: "power", Type: plugin.MemberState, ValueType: plugin.ValueBool},
			{Name: "setValve", Type: plugin.MemberAction, ValueType: plugin.ValueEnum, Options: []string{"open", "closed"}},
			{Name: "setProgram", Type: plugin.MemberAction, ValueType: plugin.ValueEnum, Options: []string{"eco", "off", "on"}},
		},
		ConfigItems: []plugin.ConfigItem{nameItem},
		Factory:     factory,
	}
	for _, m := range []*plugin.Metadata{f.sensor, f.heater} {
		if err := m.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	}
	return f
}

func (f *fixture) add(id string, meta *plugin.Metadata) *component.Host {
	f.t.Helper()

	h, err := component.NewHost(id, meta, map[string]any{"name": id})
	if err != nil {
		f.t.Fatalf("NewHost(%s) error = %v", id, err)
	}
	if err := f.registry.Add(h); err != nil {
		f.t.Fatalf("Add(%s) error = %v", id, err)
	}
	return h
}

func (f *fixture) remove(id string) {
	f.t.Helper()

	h, err := f.registry.Remove(id)
	if err != nil {
		f.t.Fatalf("Remove(%s) error = %v", id, err)
	}
	_ = h.Destroy()
}

func (f *fixture) setState(id, member string, value any) {
	f.t.Helper()
	if err := f.logics[id].sink.Set(member, value); err != nil {
		f.t.Fatalf("Set(%s.%s) error = %v", id, member, err)
	}
}

var tempBinding = Config{SourceID: "A", SourceState: "temp", TargetID: "B", TargetAction: "setTemp"}

func assertState(t *testing.T, b *Binding, want State) {
	t.Helper()
	if got := b.State(); got != want {
		t.Errorf("State() = %s, want %s (errors %v)", got, want, b.Errors())
	}
}

func TestBinding_CreatedBeforeEitherHalf(t *testing.T) {
	f := newFixture(t)

	b := New(tempBinding, f.registry)
	assertState(t, b, StateInactive)
	if len(b.Errors()) != 0 {
		t.Errorf("Errors() = %v, want none", b.Errors())
	}

	f.add("A", f.sensor)
	assertState(t, b, StateInactive)
	if len(b.Errors()) != 0 {
		t.Errorf("Errors() after source = %v, want none", b.Errors())
	}

	f.add("B", f.heater)
	assertState(t, b, StateActive)
	if !b.Active() {
		t.Error("Active() = false, want true")
	}
}

func TestBinding_OrderIndependent(t *testing.T) {
	before := newFixture(t)
	b1 := New(tempBinding, before.registry)
	before.add("A", before.sensor)
	before.add("B", before.heater)

	after := newFixture(t)
	after.add("B", after.heater)
	after.add("A", after.sensor)
	b2 := New(tempBinding, after.registry)

	if diff := cmp.Diff(b1.Status(), b2.Status()); diff != "" {
		t.Errorf("status differs by creation order (-before +after):\n%s", diff)
	}
	assertState(t, b2, StateActive)
}

func TestBinding_TypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		source string
		value  any
		want   []string
	}{
		{
			name:   "float state to bool action",
			cfg:    Config{SourceID: "A", SourceState: "temp", TargetID: "B", TargetAction: "setPower"},
			source: "temp",
			value:  21.5,
			want:   []string{"temp", "setPower", "`float`", "`bool`"},
		},
		{
			name:   "enum options differ",
			cfg:    Config{SourceID: "A", SourceState: "mode", TargetID: "B", TargetAction: "setValve"},
			source: "mode",
			value:  "on",
			want:   []string{"mode", "setValve", "`enum{off,on}`", "`enum{closed,open}`"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.add("A", f.sensor)
			f.add("B", f.heater)

			b := New(tt.cfg, f.registry)
			assertState(t, b, StateError)

			errs := b.Errors()
			if len(errs) != 1 {
				t.Fatalf("Errors() = %v, want exactly one", errs)
			}
			for _, want := range tt.want {
				if !strings.Contains(errs[0], want) {
					t.Errorf("error %q does not mention %q", errs[0], want)
				}
			}

			f.setState("A", tt.source, tt.value)
			if len(f.calls) != 0 {
				t.Errorf("target invoked despite mismatch: %v", f.calls)
			}
		})
	}
}

func TestBinding_EnumOptionsCovered(t *testing.T) {
	f := newFixture(t)
	f.add("A", f.sensor)
	f.add("B", f.heater)

	var forwardErrs []error
	b := New(Config{SourceID: "A", SourceState: "mode", TargetID: "B", TargetAction: "setProgram"}, f.registry,
		WithForwardObserver(func(_ Config, err error) { forwardErrs = append(forwardErrs, err) }))
	assertState(t, b, StateActive)

	f.setState("A", "mode", "off")
	want := []call{{"B", "setProgram", "off"}}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	for _, err := range forwardErrs {
		if err != nil {
			t.Errorf("forward error = %v, want nil", err)
		}
	}
}

func TestBinding_MissingMembers(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "missing state",
			cfg:  Config{SourceID: "A", SourceState: "pressure", TargetID: "B", TargetAction: "setTemp"},
			want: []string{"State `pressure` does not exist on component `A`"},
		},
		{
			name: "action used as state",
			cfg:  Config{SourceID: "B", SourceState: "setTemp", TargetID: "B", TargetAction: "setTemp"},
			want: []string{"State `setTemp` does not exist on component `B`"},
		},
		{
			name: "missing action",
			cfg:  Config{SourceID: "A", SourceState: "temp", TargetID: "B", TargetAction: "boost"},
			want: []string{"Action `boost` does not exist on component `B`"},
		},
		{
			name: "both missing",
			cfg:  Config{SourceID: "A", SourceState: "x", TargetID: "B", TargetAction: "power"},
			want: []string{
				"State `x` does not exist on component `A`",
				"Action `power` does not exist on component `B`",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.add("A", f.sensor)
			f.add("B", f.heater)

			b := New(tt.cfg, f.registry)
			assertState(t, b, StateError)
			if diff := cmp.Diff(tt.want, b.Errors()); diff != "" {
				t.Errorf("Errors() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBinding_InitialValueForwarding(t *testing.T) {
	t.Run("set source value is forwarded once", func(t *testing.T) {
		f := newFixture(t)
		f.add("A", f.sensor)
		f.setState("A", "temp", 21.5)
		f.add("B", f.heater)

		New(tempBinding, f.registry)

		want := []call{{"B", "setTemp", 21.5}}
		if diff := cmp.Diff(want, f.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unset source value is not forwarded", func(t *testing.T) {
		f := newFixture(t)
		f.add("A", f.sensor)
		f.add("B", f.heater)

		New(tempBinding, f.registry)
		if len(f.calls) != 0 {
			t.Fatalf("calls = %v, want none before first change", f.calls)
		}

		f.setState("A", "temp", 19.0)
		want := []call{{"B", "setTemp", 19.0}}
		if diff := cmp.Diff(want, f.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("each activation forwards the current value", func(t *testing.T) {
		f := newFixture(t)
		f.add("A", f.sensor)
		f.setState("A", "temp", 20.0)
		b := New(tempBinding, f.registry)

		f.add("B", f.heater)
		f.remove("B")
		f.add("B", f.heater)
		assertState(t, b, StateActive)

		want := []call{{"B", "setTemp", 20.0}, {"B", "setTemp", 20.0}}
		if diff := cmp.Diff(want, f.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unchanged value is forwarded again after the source returns", func(t *testing.T) {
		f := newFixture(t)
		f.add("A", f.sensor)
		f.add("B", f.heater)
		b := New(tempBinding, f.registry)
		f.setState("A", "temp", 20.0)

		f.remove("A")
		assertState(t, b, StateInactive)
		f.add("A", f.sensor)
		assertState(t, b, StateActive)
		f.setState("A", "temp", 20.0)

		want := []call{{"B", "setTemp", 20.0}, {"B", "setTemp", 20.0}}
		if diff := cmp.Diff(want, f.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestBinding_ForwardsOnlyBoundMember(t *testing.T) {
	f := newFixture(t)
	f.add("A", f.sensor)
	f.add("B", f.heater)
	New(tempBinding, f.registry)

	f.setState("A", "humidity", 40.0)
	f.setState("A", "temp", 18.0)
	f.setState("A", "temp", 18.0) // unchanged, no event
	f.setState("A", "temp", 18.5)

	want := []call{{"B", "setTemp", 18.0}, {"B", "setTemp", 18.5}}
	if diff := cmp.Diff(want, f.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestBinding_RemovalSymmetry(t *testing.T) {
	for _, removed := range []string{"A", "B"} {
		t.Run("remove "+removed, func(t *testing.T) {
			f := newFixture(t)
			f.add("A", f.sensor)
			f.add("B", f.heater)
			sourceLogic := f.logics["A"]

			b := New(tempBinding, f.registry)
			assertState(t, b, StateActive)

			if removed == "A" {
				// Detach without destroying so the orphaned source can still change.
				if _, err := f.registry.Remove("A"); err != nil {
					t.Fatalf("Remove(A) error = %v", err)
				}
			} else {
				f.remove("B")
			}
			assertState(t, b, StateInactive)
			if len(b.Errors()) != 0 {
				t.Errorf("Errors() = %v, want none", b.Errors())
			}

			if err := sourceLogic.sink.Set("temp", 30.0); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if len(f.calls) != 0 {
				t.Errorf("calls after removal = %v, want none", f.calls)
			}
		})
	}
}

func TestBinding_ErrorClearsWhenHalfRemoved(t *testing.T) {
	f := newFixture(t)
	f.add("A", f.sensor)
	f.add("B", f.heater)

	b := New(Config{SourceID: "A", SourceState: "temp", TargetID: "B", TargetAction: "setPower"}, f.registry)
	assertState(t, b, StateError)

	f.remove("B")
	assertState(t, b, StateInactive)
	if len(b.Errors()) != 0 {
		t.Errorf("Errors() = %v, want cleared", b.Errors())
	}
}

func TestBinding_Close(t *testing.T) {
	f := newFixture(t)
	f.add("A", f.sensor)
	f.add("B", f.heater)

	var transitions []string
	b := New(tempBinding, f.registry, WithStateObserver(func(_ Config, from, to State) {
		transitions = append(transitions, string(from)+">"+string(to))
	}))
	b.Close()
	b.Close()

	assertState(t, b, StateClosed)
	st := b.Status()
	if st.SourceResolved || st.TargetResolved {
		t.Errorf("Status() after Close = %+v, want halves released", st)
	}

	f.setState("A", "temp", 22.0)
	if len(f.calls) != 0 {
		t.Errorf("calls after Close = %v, want none", f.calls)
	}

	// Re-adding components no longer affects a closed binding.
	f.remove("B")
	f.add("B", f.heater)
	assertState(t, b, StateClosed)

	want := []string{"inactive>active", "active>inactive", "inactive>closed"}
	if diff := cmp.Diff(want, transitions); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestBinding_ForwardObserver(t *testing.T) {
	f := newFixture(t)
	f.add("A", f.sensor)
	f.add("B", f.heater)

	var results []error
	New(tempBinding, f.registry, WithForwardObserver(func(_ Config, err error) {
		results = append(results, err)
	}))

	f.setState("A", "temp", 1.0)
	if len(results) != 1 || results[0] != nil {
		t.Errorf("observer results = %v, want one success", results)
	}
}

func TestBinding_SelfBinding(t *testing.T) {
	f := newFixture(t)
	f.add("B", f.heater)

	b := New(Config{SourceID: "B", SourceState: "power", TargetID: "B", TargetAction: "setPower"}, f.registry)
	assertState(t, b, StateActive)

	f.remove("B")
	assertState(t, b, StateInactive)
}

func TestConfig(t *testing.T) {
	if got := tempBinding.Key(); got != "A|temp|B|setTemp" {
		t.Errorf("Key() = %q", got)
	}
	if err := tempBinding.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := []Config{
		{SourceState: "temp", TargetID: "B", TargetAction: "setTemp"},
		{SourceID: "A", TargetID: "B", TargetAction: "setTemp"},
		{SourceID: "A", SourceState: "temp", TargetAction: "setTemp"},
		{SourceID: "A", SourceState: "temp", TargetID: "B"},
		{SourceID: "A|x", SourceState: "temp", TargetID: "B", TargetAction: "setTemp"},
	}
	for _, c := range bad {
		if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate(%+v) error = %v, want ErrInvalidConfig", c, err)
		}
	}
}
