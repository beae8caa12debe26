package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/mqtt"
)

// defaultCallTimeout bounds one procedure call received over MQTT.
const defaultCallTimeout = 30 * time.Second

// Logger defines the logging interface used by the rpc package.
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

// Bus is the MQTT surface the transport needs. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Request is the payload published on a request topic.
type Request struct {
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

// Response is the payload published on the reply topic.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// TransportOption configures an MQTTTransport.
type TransportOption func(*MQTTTransport)

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger Logger) TransportOption {
	return func(t *MQTTTransport) { t.logger = logger }
}

// WithCallTimeout bounds each procedure call.
func WithCallTimeout(d time.Duration) TransportOption {
	return func(t *MQTTTransport) { t.timeout = d }
}

// WithQoS sets the QoS used for subscriptions and replies.
func WithQoS(qos byte) TransportOption {
	return func(t *MQTTTransport) { t.qos = qos }
}

// WithCallObserver installs fn, called after every served call with the
// method and its response code ("" on success).
func WithCallObserver(fn func(method, code string)) TransportOption {
	return func(t *MQTTTransport) { t.observer = fn }
}

// MQTTTransport serves a Server over MQTT.
//
// Requests arrive on graylogic/runtime/{instance}/rpc/request/{requestID}.
// The reply goes to the request's reply_to topic or, when absent, to
// graylogic/runtime/{instance}/rpc/response/{requestID}.
//
// Each request runs in its own goroutine so a slow call never stalls the
// MQTT client's delivery of other messages.
type MQTTTransport struct {
	server   *Server
	bus      Bus
	instance string
	qos      byte
	timeout  time.Duration
	logger   Logger
	observer func(method, code string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMQTTTransport creates a transport for server on bus.
func NewMQTTTransport(server *Server, bus Bus, instance string, opts ...TransportOption) *MQTTTransport {
	t := &MQTTTransport{
		server:   server,
		bus:      bus,
		instance: instance,
		qos:      1,
		timeout:  defaultCallTimeout,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes to the instance's request topics.
// Calls run under a context derived from ctx.
func (t *MQTTTransport) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	topic := mqtt.Topics{}.AllRPCRequests(t.instance)
	if err := t.bus.Subscribe(topic, t.qos, t.handleMessage); err != nil {
		t.cancel()
		return fmt.Errorf("subscribing to rpc requests: %w", err)
	}

	t.logger.Info("rpc transport started", "topic", topic, "methods", t.server.Methods())
	return nil
}

// Stop unsubscribes and waits for in-flight calls to finish.
func (t *MQTTTransport) Stop() {
	if t.cancel == nil {
		return
	}
	if err := t.bus.Unsubscribe(mqtt.Topics{}.AllRPCRequests(t.instance)); err != nil {
		t.logger.Debug("unsubscribing rpc requests", "error", err)
	}
	t.cancel()
	t.wg.Wait()
}

func (t *MQTTTransport) handleMessage(topic string, payload []byte) error {
	_, requestID, ok := mqtt.ParseRPCRequest(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrInvalidRequest, topic)
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		// Reply so the caller is not left waiting for its timeout.
		t.reply(mqtt.Topics{}.RPCResponse(t.instance, requestID), Response{
			ID:    requestID,
			Error: NewError(fmt.Errorf("%w: %w", ErrInvalidRequest, err)),
		})
		return nil
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.serve(requestID, req)
	}()
	return nil
}

func (t *MQTTTransport) serve(requestID string, req Request) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	start := time.Now()
	resp := Response{ID: requestID}

	result, err := t.server.Call(ctx, req.Method, req.Params)
	if err == nil {
		resp.Result, err = json.Marshal(result)
	}
	if err != nil {
		resp.Result = nil
		resp.Error = NewError(err)
	}

	if t.observer != nil {
		t.observer(req.Method, ErrorCode(err))
	}
	t.logger.Debug("rpc call",
		"method", req.Method,
		"request_id", requestID,
		"duration", time.Since(start),
		"error_code", ErrorCode(err),
	)

	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = mqtt.Topics{}.RPCResponse(t.instance, requestID)
	}
	t.reply(replyTo, resp)
}

func (t *MQTTTransport) reply(topic string, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		t.logger.Error("encoding rpc response", "request_id", resp.ID, "error", err)
		return
	}
	if err := t.bus.Publish(topic, payload, t.qos, false); err != nil {
		t.logger.Warn("publishing rpc response", "topic", topic, "error", err)
	}
}
