package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
)

const (
	// wsSendBufferSize is the per-client outbound queue length.
	wsSendBufferSize = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// Origin checks are done by the CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string
	subject string // token subject from the ticket; empty when auth is off

	mu            sync.RWMutex
	send          chan []byte
	closed        bool
	subscriptions map[string]struct{}
	components    map[string]struct{}
}

// wsRequest is a message received from a client.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// wsTiming holds the keepalive durations derived from the config.
type wsTiming struct {
	pingEvery time.Duration
	pongWait  time.Duration
}

func timingFor(cfg config.WebSocketConfig) wsTiming {
	t := wsTiming{
		pingEvery: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:  time.Duration(cfg.PongTimeout) * time.Second,
	}
	if t.pingEvery <= 0 {
		t.pingEvery = defaultPingInterval
	}
	if t.pongWait <= 0 {
		t.pongWait = defaultPongTimeout
	}
	return t
}

// readDeadline is how long the connection may stay silent.
func (t wsTiming) readDeadline() time.Time {
	return time.Now().Add(t.pingEvery + t.pongWait)
}

// handleWebSocket upgrades the request to a WebSocket connection. When JWT
// auth is on, a single-use ticket from POST /auth/ws-ticket is required in
// the ticket query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var subject string
	if s.secCfg.JWT.Secret != "" {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		entry, ok := s.tickets.redeem(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		subject = entry.subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		id:            uuid.NewString(),
		subject:       subject,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	timing := timingFor(s.wsCfg)
	go client.writePump(timing)
	go client.readPump(timing, int64(s.wsCfg.MaxMessageSize))
}

// readPump handles client messages until the connection fails.
func (c *WSClient) readPump(t wsTiming, maxSize int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if maxSize > 0 {
		c.conn.SetReadLimit(maxSize)
	}
	//nolint:errcheck // A failed deadline surfaces as a read error
	c.conn.SetReadDeadline(t.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
		// Application messages count as liveness too; some browsers never
		// answer protocol pings.
		//nolint:errcheck // A failed deadline surfaces as a read error
		c.conn.SetReadDeadline(t.readDeadline())
		c.handleMessage(data)
	}
}

// writePump drains the outbound queue and sends keepalive pings.
func (c *WSClient) writePump(t wsTiming) {
	ticker := time.NewTicker(t.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		//nolint:errcheck // A failed deadline surfaces as a write error
		c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Connection is closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.handleSubscription(req)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.sendError(req.ID, "unknown message type: "+req.Type)
	}
}

// handleSubscription applies a subscribe or unsubscribe request. Unknown
// channels reject the whole request.
func (c *WSClient) handleSubscription(req wsRequest) {
	var sub WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
		c.sendError(req.ID, "invalid "+req.Type+" payload")
		return
	}

	var unknown []string
	for _, ch := range sub.Channels {
		if _, ok := knownChannels[ch]; !ok {
			unknown = append(unknown, ch)
		}
	}
	if len(unknown) > 0 {
		c.sendError(req.ID, "unknown channels: "+strings.Join(unknown, ", "))
		return
	}

	subscribe := req.Type == WSTypeSubscribe

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	for _, id := range sub.Components {
		if subscribe {
			if c.components == nil {
				c.components = make(map[string]struct{})
			}
			c.components[id] = struct{}{}
		} else {
			delete(c.components, id)
		}
	}
	channels := sortedKeys(c.subscriptions)
	components := sortedKeys(c.components)
	c.mu.Unlock()

	if subscribe {
		c.hub.logger.Info("websocket client subscribed",
			"client_id", c.id, "subject", c.subject, "channels", sub.Channels, "components", sub.Components)
	}
	c.reply(req.ID, WSTypeResponse, map[string]any{
		"channels":   channels,
		"components": components,
	})
}

// wants reports whether an event on channel about componentID should be
// delivered.
func (c *WSClient) wants(channel, componentID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	if componentID == "" || len(c.components) == 0 {
		return true
	}
	_, ok := c.components[componentID]
	return ok
}

// trySend queues data without blocking. It returns false when the queue
// is full or the client has gone.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close ends the outbound queue, which stops writePump. Later sends are
// discarded.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
