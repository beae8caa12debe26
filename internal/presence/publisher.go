package presence

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/mqtt"
)

// defaultQueueSize bounds changes waiting to be published.
const defaultQueueSize = 256

// Publisher is the MQTT surface the state publisher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// StateMessage is the retained payload on a component state topic.
type StateMessage struct {
	ID        string         `json:"id"`
	Plugin    string         `json:"plugin"`
	Instance  string         `json:"instance"`
	State     map[string]any `json:"state"`
	Timestamp string         `json:"timestamp"`
}

// LifecycleMessage is published when a component is added or removed.
type LifecycleMessage struct {
	ID        string `json:"id"`
	Plugin    string `json:"plugin"`
	Instance  string `json:"instance"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// PublisherOption configures a StatePublisher.
type PublisherOption func(*StatePublisher)

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(logger Logger) PublisherOption {
	return func(p *StatePublisher) { p.logger = logger }
}

// WithQueueSize sets how many changes may wait for the broker.
func WithQueueSize(n int) PublisherOption {
	return func(p *StatePublisher) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// StatePublisher mirrors local component state onto MQTT.
//
// Observe is fed from the event loop and never blocks: changes are queued
// and published by a worker goroutine. When the queue is full the change is
// dropped and counted; the next change of the same component republishes
// its complete state.
//
// Thread Safety:
//   - Observe is safe to call from any goroutine.
type StatePublisher struct {
	bus       Publisher
	instance  string
	logger    Logger
	queueSize int

	queue chan component.Change
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	dropped int
}

// NewStatePublisher creates a publisher for instance on bus.
func NewStatePublisher(bus Publisher, instance string, opts ...PublisherOption) *StatePublisher {
	p := &StatePublisher{
		bus:       bus,
		instance:  instance,
		logger:    noopLogger{},
		queueSize: defaultQueueSize,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan component.Change, p.queueSize)
	return p
}

// Start launches the publishing worker.
func (p *StatePublisher) Start() {
	go p.run()
}

// Stop publishes what is already queued and stops the worker.
func (p *StatePublisher) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}

// Observe queues c for publishing. It is shaped to be passed to
// component.Watch.
func (p *StatePublisher) Observe(c component.Change) {
	select {
	case <-p.stop:
		return
	default:
	}

	select {
	case p.queue <- c:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Warn("state publish queue full, dropping change",
			"component_id", c.ComponentID,
			"kind", string(c.Kind),
		)
	}
}

// Dropped returns how many changes were discarded because the queue was full.
func (p *StatePublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *StatePublisher) run() {
	defer close(p.done)

	// Full state per component, owned by this goroutine.
	states := make(map[string]map[string]any)

	for {
		select {
		case c := <-p.queue:
			p.handle(states, c)
		case <-p.stop:
			for {
				select {
				case c := <-p.queue:
					p.handle(states, c)
				default:
					return
				}
			}
		}
	}
}

func (p *StatePublisher) handle(states map[string]map[string]any, c component.Change) {
	topics := mqtt.Topics{}
	ts := c.Time.UTC().Format(time.RFC3339Nano)

	switch c.Kind {
	case component.ChangeAdded:
		state := c.State
		if state == nil {
			state = map[string]any{}
		}
		states[c.ComponentID] = state
		p.publishLifecycle(c, "added", ts)
		p.publishState(c, state, ts)

	case component.ChangeState:
		state, ok := states[c.ComponentID]
		if !ok {
			state = map[string]any{}
			states[c.ComponentID] = state
		}
		if c.Value == nil {
			delete(state, c.Member)
		} else {
			state[c.Member] = c.Value
		}
		p.publishState(c, state, ts)

	case component.ChangeRemoved:
		delete(states, c.ComponentID)
		p.publishLifecycle(c, "removed", ts)
		// An empty retained message clears the broker's copy.
		p.publish(topics.ComponentState(p.instance, c.ComponentID), nil, true)
	}
}

func (p *StatePublisher) publishState(c component.Change, state map[string]any, ts string) {
	payload, err := json.Marshal(StateMessage{
		ID:        c.ComponentID,
		Plugin:    c.Plugin,
		Instance:  p.instance,
		State:     state,
		Timestamp: ts,
	})
	if err != nil {
		p.logger.Error("encoding component state", "component_id", c.ComponentID, "error", err)
		return
	}
	p.publish(mqtt.Topics{}.ComponentState(p.instance, c.ComponentID), payload, true)
}

func (p *StatePublisher) publishLifecycle(c component.Change, event, ts string) {
	payload, err := json.Marshal(LifecycleMessage{
		ID:        c.ComponentID,
		Plugin:    c.Plugin,
		Instance:  p.instance,
		Event:     event,
		Timestamp: ts,
	})
	if err != nil {
		p.logger.Error("encoding component lifecycle", "component_id", c.ComponentID, "error", err)
		return
	}
	p.publish(mqtt.Topics{}.ComponentLifecycle(p.instance, c.ComponentID), payload, false)
}

func (p *StatePublisher) publish(topic string, payload []byte, retained bool) {
	if err := p.bus.Publish(topic, payload, 1, retained); err != nil {
		p.logger.Warn("publishing component update", "topic", topic, "error", err)
	}
}
