package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/binding"
	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/logging"
)

// Message types exchanged with WebSocket clients.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Broadcast channels. Clients subscribe to these by name.
const (
	ChannelComponentLifecycle = "component.lifecycle"
	ChannelComponentState     = "component.state"
	ChannelBindingState       = "binding.state"
)

var knownChannels = map[string]struct{}{
	ChannelComponentLifecycle: {},
	ChannelComponentState:     {},
	ChannelBindingState:       {},
}

// ComponentEvent is the payload of component.lifecycle and component.state
// events.
type ComponentEvent struct {
	Event       string         `json:"event"`
	ComponentID string         `json:"id"`
	Plugin      string         `json:"plugin"`
	Instance    string         `json:"instance"`
	Member      string         `json:"member,omitempty"`
	Value       any            `json:"value,omitempty"`
	State       map[string]any `json:"state,omitempty"`
}

// BindingEvent is the payload of binding.state events.
type BindingEvent struct {
	Binding binding.Config `json:"binding"`
	From    binding.State  `json:"from"`
	To      binding.State  `json:"to"`
}

// WSMessage is a message sent to a client. Clients send the same shape.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe messages.
//
// Components narrows the component channels to the listed component ids.
// A client that never names components receives every component.
type WSSubscribePayload struct {
	Channels   []string `json:"channels"`
	Components []string `json:"components,omitempty"`
}

// Hub fans runtime events out to connected WebSocket clients.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Observe and ObserveBinding
//     never block, so they may run on the event loop.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	dropped atomic.Int64
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client_id", client.id, "clients", n)
}

// Unregister removes a client and closes its outbound queue. Removing a
// client twice is harmless.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.close()
		h.logger.Debug("websocket client disconnected", "client_id", client.id, "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were discarded because a client's queue
// was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Broadcast sends an event to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.publish(channel, "", payload)
}

// publish sends an event on channel. A non-empty componentID is checked
// against each client's component filter.
func (h *Hub) publish(channel, componentID string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.wants(channel, componentID) {
			continue
		}
		if !client.trySend(data) {
			h.dropped.Add(1)
		}
	}
}

// Observe broadcasts a component change. It has the shape of a
// component.Watch observer.
func (h *Hub) Observe(c component.Change) {
	ev := ComponentEvent{
		Event:       string(c.Kind),
		ComponentID: c.ComponentID,
		Plugin:      c.Plugin,
		Instance:    c.Instance,
	}

	channel := ChannelComponentLifecycle
	switch c.Kind {
	case component.ChangeState:
		channel = ChannelComponentState
		ev.Member = c.Member
		ev.Value = c.Value
	case component.ChangeAdded:
		ev.State = c.State
	}
	h.publish(channel, c.ComponentID, ev)
}

// ObserveBinding broadcasts a binding state transition. It has the shape of
// binding.StateObserver.
func (h *Hub) ObserveBinding(cfg binding.Config, from, to binding.State) {
	h.Broadcast(ChannelBindingState, BindingEvent{Binding: cfg, From: from, To: to})
}
