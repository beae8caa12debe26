//go:build integration

package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
)

// Integration tests against a live broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

// TestIntegration_PresenceRetained verifies a connected client leaves a
// retained online presence that a later subscriber receives.
func TestIntegration_PresenceRetained(t *testing.T) {
	client, err := Connect(integrationConfig("graylogic-int-presence"), "int-presence")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	watcher, err := Connect(integrationConfig("graylogic-int-watcher"), "int-watcher")
	if err != nil {
		t.Fatalf("Connect() watcher error = %v", err)
	}
	defer watcher.Close()

	received := make(chan PresenceMessage, 4)
	err = watcher.Subscribe(Topics{}.Presence("int-presence"), 1, func(_ string, p []byte) error {
		var msg PresenceMessage
		if err := json.Unmarshal(p, &msg); err != nil {
			return err
		}
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg.Status != PresenceOnline {
			t.Errorf("presence status = %q, want online", msg.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for retained presence")
	}
}

// TestIntegration_SubscriptionTracking verifies subscriptions are tracked
// for restoration after reconnect.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	client, err := Connect(integrationConfig("graylogic-int-sub-track"), "int-sub-track")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{
		Topics{}.AllPresence(),
		Topics{}.AllRPCRequests("int-sub-track"),
		Topics{}.AllComponentStates(),
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if got := client.SubscriptionCount(); got != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", got, len(topics))
	}
	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Error("HasSubscription() = true after Unsubscribe")
	}
}

// TestIntegration_MessageRoundtrip verifies pub/sub works end-to-end.
func TestIntegration_MessageRoundtrip(t *testing.T) {
	pubClient, err := Connect(integrationConfig("graylogic-int-pub"), "int-pub")
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	subClient, err := Connect(integrationConfig("graylogic-int-sub"), "int-sub")
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := Topics{}.RPCRequest("int-sub", "req-roundtrip")
	expected := `{"method":"components.list"}`

	received := make(chan string, 1)
	var once sync.Once

	err = subClient.Subscribe(Topics{}.AllRPCRequests("int-sub"), 1, func(_ string, p []byte) error {
		once.Do(func() {
			received <- string(p)
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishString(topic, expected, 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("Received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}
