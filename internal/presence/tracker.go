package presence

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the presence package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus is the MQTT surface the tracker needs. *mqtt.Client satisfies it.
type Bus interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Peer is the last known presence of one runtime instance.
type Peer struct {
	Instance string    `json:"instance"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	Since    time.Time `json:"since"`
	Self     bool      `json:"self"`
}

// Online reports whether the peer announced itself online.
func (p Peer) Online() bool {
	return p.Status == mqtt.PresenceOnline
}

// Tracker follows the presence of every runtime instance on the bus.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Tracker struct {
	bus    Bus
	self   string
	logger Logger

	mu      sync.RWMutex
	started bool
	peers   map[string]Peer
	onPeer  func(Peer)
}

// NewTracker creates a tracker for the instance named self.
func NewTracker(bus Bus, self string) *Tracker {
	return &Tracker{
		bus:    bus,
		self:   self,
		logger: noopLogger{},
		peers:  make(map[string]Peer),
	}
}

// SetLogger sets the tracker logger.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// OnPeer registers fn to be called after a peer's presence changes.
// It runs on the MQTT delivery goroutine.
func (t *Tracker) OnPeer(fn func(Peer)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPeer = fn
}

// Start subscribes to every instance's presence topic. Retained messages
// populate the peer table straight away.
func (t *Tracker) Start() error {
	if err := t.bus.Subscribe(mqtt.Topics{}.AllPresence(), 1, t.handleMessage); err != nil {
		return fmt.Errorf("subscribing to presence: %w", err)
	}

	t.mu.Lock()
	t.started = true
	t.mu.Unlock()

	t.logger.Info("presence tracking started", "instance", t.self)
	return nil
}

// Stop unsubscribes from presence topics. Available reports false afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	wasStarted := t.started
	t.started = false
	t.mu.Unlock()

	if !wasStarted {
		return
	}
	if err := t.bus.Unsubscribe(mqtt.Topics{}.AllPresence()); err != nil {
		t.logger.Debug("unsubscribing presence", "error", err)
	}
}

// Available reports whether presence tracking works right now: the
// tracker is subscribed and the bus is connected.
func (t *Tracker) Available() bool {
	t.mu.RLock()
	started := t.started
	t.mu.RUnlock()
	return started && t.bus.IsConnected()
}

// Peers returns every known instance sorted by name, including this one
// once its own retained presence has been seen.
func (t *Tracker) Peers() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Peer) int { return strings.Compare(a.Instance, b.Instance) })
	return out
}

// Peer returns the last known presence of instance.
func (t *Tracker) Peer(instance string) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[instance]
	return p, ok
}

func (t *Tracker) handleMessage(topic string, payload []byte) error {
	instance, ok := mqtt.ParsePresence(topic)
	if !ok {
		return fmt.Errorf("unexpected presence topic %s", topic)
	}

	// An empty retained payload clears the instance.
	if len(payload) == 0 {
		t.mu.Lock()
		delete(t.peers, instance)
		t.mu.Unlock()
		t.logger.Debug("presence cleared", "instance", instance)
		return nil
	}

	var msg mqtt.PresenceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding presence of %s: %w", instance, err)
	}

	peer := Peer{
		Instance: instance,
		Status:   msg.Status,
		Reason:   msg.Reason,
		Since:    parseTimestamp(msg.Timestamp),
		Self:     instance == t.self,
	}

	t.mu.Lock()
	prev, known := t.peers[instance]
	t.peers[instance] = peer
	onPeer := t.onPeer
	t.mu.Unlock()

	if !known || prev.Status != peer.Status {
		t.logger.Info("instance presence changed",
			"instance", instance,
			"status", peer.Status,
			"reason", peer.Reason,
		)
	}
	if onPeer != nil {
		onPeer(peer)
	}
	return nil
}

// parseTimestamp falls back to the receive time for missing or malformed
// timestamps.
func parseTimestamp(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Now().UTC()
}
