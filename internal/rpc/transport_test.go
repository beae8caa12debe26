package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/component"
	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/mqtt"
)

// memoryBus is an in-process MQTT stand-in with + and # wildcard matching.
// Messages are delivered synchronously to every matching subscription.
type memoryBus struct {
	mu        sync.Mutex
	subs      map[string]mqtt.MessageHandler
	published []string
}

func newMemoryBus() *memoryBus {
	return &memoryBus{subs: make(map[string]mqtt.MessageHandler)}
}

func (b *memoryBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = handler
	return nil
}

func (b *memoryBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, topic)
	return nil
}

func (b *memoryBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	b.published = append(b.published, topic)
	var handlers []mqtt.MessageHandler
	for pattern, h := range b.subs {
		if topicMatches(pattern, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		_ = h(topic, payload) //nolint:errcheck // Handler errors are logged by the real client
	}
	return nil
}

func (b *memoryBus) subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func topicMatches(pattern, topic string) bool {
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	for i, level := range p {
		if level == "#" {
			return true
		}
		if i >= len(t) || (level != "+" && level != t[i]) {
			return false
		}
	}
	return len(p) == len(t)
}

func startTransport(t *testing.T, m *mockManager, opts ...TransportOption) (*memoryBus, *MQTTTransport) {
	t.Helper()
	bus := newMemoryBus()
	opts = append([]TransportOption{WithCallTimeout(time.Second)}, opts...)
	tr := NewMQTTTransport(NewServer(m), bus, "runtime-01", opts...)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(tr.Stop)
	return bus, tr
}

func TestTransport_RoundTrip(t *testing.T) {
	m := &mockManager{}
	bus, _ := startTransport(t, m)
	caller := NewCaller(bus)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var info component.Info
	err := caller.Call(ctx, "runtime-01", MethodComponentsAdd,
		component.Config{ID: "lamp", Plugin: "core/variable-bool"}, &info)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if info.ID != "lamp" {
		t.Errorf("result ID = %q, want lamp", info.ID)
	}

	// Only the transport's own subscription remains.
	if got := bus.subscriptions(); got != 1 {
		t.Errorf("subscriptions = %d after call, want 1", got)
	}
}

func TestTransport_RemoteError(t *testing.T) {
	m := &mockManager{err: component.ErrDuplicateID}
	bus, _ := startTransport(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := NewCaller(bus).Call(ctx, "runtime-01", MethodComponentsAdd,
		component.Config{ID: "lamp", Plugin: "core/variable-bool"}, nil)

	var wire *Error
	if !errors.As(err, &wire) {
		t.Fatalf("Call() error = %v, want *Error", err)
	}
	if wire.Code != CodeConflict {
		t.Errorf("error code = %q, want %q", wire.Code, CodeConflict)
	}
}

func TestTransport_DefaultReplyTopic(t *testing.T) {
	bus, _ := startTransport(t, &mockManager{})

	replies := make(chan Response, 1)
	responseTopic := mqtt.Topics{}.RPCResponse("runtime-01", "req-7")
	_ = bus.Subscribe(responseTopic, 1, func(_ string, p []byte) error { //nolint:errcheck // memoryBus never fails
		var resp Response
		if err := json.Unmarshal(p, &resp); err != nil {
			return err
		}
		replies <- resp
		return nil
	})

	request := mqtt.Topics{}.RPCRequest("runtime-01", "req-7")
	_ = bus.Publish(request, []byte(`{"method":"store.save"}`), 1, false) //nolint:errcheck // memoryBus never fails

	select {
	case resp := <-replies:
		if resp.ID != "req-7" || resp.Error != nil || string(resp.Result) != `{"ok":true}` {
			t.Errorf("response = %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no response on the default reply topic")
	}
}

func TestTransport_MalformedRequest(t *testing.T) {
	bus, _ := startTransport(t, &mockManager{})

	replies := make(chan Response, 1)
	_ = bus.Subscribe(mqtt.Topics{}.RPCResponse("runtime-01", "bad"), 1, func(_ string, p []byte) error { //nolint:errcheck // memoryBus never fails
		var resp Response
		if err := json.Unmarshal(p, &resp); err != nil {
			return err
		}
		replies <- resp
		return nil
	})

	_ = bus.Publish(mqtt.Topics{}.RPCRequest("runtime-01", "bad"), []byte(`not json`), 1, false) //nolint:errcheck // memoryBus never fails

	select {
	case resp := <-replies:
		if resp.Error == nil || resp.Error.Code != CodeBadRequest {
			t.Errorf("response error = %+v, want bad_request", resp.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no response to malformed request")
	}
}

func TestCaller_Timeout(t *testing.T) {
	// Nobody serves runtime-02.
	bus := newMemoryBus()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewCaller(bus).Call(ctx, "runtime-02", MethodComponentsList, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want DeadlineExceeded", err)
	}
	if got := bus.subscriptions(); got != 0 {
		t.Errorf("subscriptions = %d after timeout, want 0", got)
	}
}

func TestTransport_CallObserver(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	observe := func(method, code string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, method+":"+code)
	}

	bus, _ := startTransport(t, &mockManager{}, WithCallObserver(observe))
	caller := NewCaller(bus)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := caller.Call(ctx, "runtime-01", MethodStoreSave, nil, nil); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if err := caller.Call(ctx, "runtime-01", "scenes.activate", nil, nil); err == nil {
		t.Fatal("Call(unknown) error = nil")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"store.save:", "scenes.activate:" + CodeMethodNotFound}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("observed calls = %v, want %v", calls, want)
	}
}
