package component

import "time"

// ChangeKind identifies what a Change reports.
type ChangeKind string

// Change kinds delivered by Watch.
const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeState   ChangeKind = "state"
)

// Change is a flattened registry or state event, safe to hand to other
// goroutines: it holds no reference to the host.
type Change struct {
	Kind        ChangeKind
	ComponentID string
	Plugin      string
	Instance    string
	Time        time.Time

	// Member and Value are set for ChangeState. A nil Value means the
	// state was cleared.
	Member string
	Value  any

	// State is a copy of the component state, set for ChangeAdded.
	State map[string]any
}

// Watch reports every component lifecycle event and every state change of
// every registered component to fn, until stop is called.
//
// Components already registered are reported as ChangeAdded first.
// fn runs synchronously on the goroutine that owns the registry, so it
// must not block; observers that do I/O hand the Change to a worker.
//
// Thread Safety:
//   - Watch and stop must be called from the goroutine that owns r.
func Watch(r *Registry, fn func(Change)) (stop func()) {
	w := &watcher{fn: fn, states: make(map[string]func())}

	for h := range r.Components() {
		w.attach(h)
	}
	unsubscribe := r.Subscribe(w.handleEvent)

	return func() {
		unsubscribe()
		for id, off := range w.states {
			off()
			delete(w.states, id)
		}
	}
}

type watcher struct {
	fn     func(Change)
	states map[string]func()
}

func (w *watcher) handleEvent(ev Event) {
	switch ev.Type {
	case EventAdded:
		w.attach(ev.Component)
	case EventRemoved:
		h := ev.Component
		if off, ok := w.states[h.ID()]; ok {
			off()
			delete(w.states, h.ID())
		}
		w.fn(Change{
			Kind:        ChangeRemoved,
			ComponentID: h.ID(),
			Plugin:      h.Plugin().ID(),
			Instance:    h.Instance(),
			Time:        time.Now(),
		})
	}
}

func (w *watcher) attach(h *Host) {
	id, pluginID, instance := h.ID(), h.Plugin().ID(), h.Instance()

	w.states[id] = h.OnState(func(member string, value any) {
		w.fn(Change{
			Kind:        ChangeState,
			ComponentID: id,
			Plugin:      pluginID,
			Instance:    instance,
			Time:        time.Now(),
			Member:      member,
			Value:       deepCopyValue(value),
		})
	})

	w.fn(Change{
		Kind:        ChangeAdded,
		ComponentID: id,
		Plugin:      pluginID,
		Instance:    instance,
		Time:        time.Now(),
		State:       h.State(),
	})
}
