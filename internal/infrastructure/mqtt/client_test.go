package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker-backed tests live in integration_test.go.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-runtime-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.MQTTConfig)
		wantBroker string
		wantUser   string
		wantTLS    bool
	}{
		{
			name:       "plain tcp",
			mutate:     func(*config.MQTTConfig) {},
			wantBroker: "tcp://127.0.0.1:1883",
		},
		{
			name: "tls with credentials",
			mutate: func(c *config.MQTTConfig) {
				c.Broker.TLS = true
				c.Broker.Port = 8883
				c.Auth.Username = "runtime"
				c.Auth.Password = "secret"
			},
			wantBroker: "ssl://127.0.0.1:8883",
			wantUser:   "runtime",
			wantTLS:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			opts := buildClientOptions(cfg)
			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.wantBroker {
				t.Errorf("Servers = %v, want [%s]", opts.Servers, tt.wantBroker)
			}
			if opts.ClientID != cfg.Broker.ClientID {
				t.Errorf("ClientID = %q, want %q", opts.ClientID, cfg.Broker.ClientID)
			}
			if opts.Username != tt.wantUser {
				t.Errorf("Username = %q, want %q", opts.Username, tt.wantUser)
			}
			if (opts.TLSConfig != nil) != tt.wantTLS {
				t.Errorf("TLSConfig set = %v, want %v", opts.TLSConfig != nil, tt.wantTLS)
			}
			if !opts.AutoReconnect {
				t.Error("AutoReconnect = false, want true")
			}
		})
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "runtime-01")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "graylogic/runtime/runtime-01/presence" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var msg PresenceMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Instance != "runtime-01" || msg.Status != PresenceOffline || msg.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestPresencePayload(t *testing.T) {
	var msg PresenceMessage
	if err := json.Unmarshal(presencePayload("runtime-02", PresenceOnline, ""), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Instance != "runtime-02" || msg.Status != PresenceOnline || msg.Timestamp == "" {
		t.Errorf("presence payload = %+v", msg)
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestDisconnectedClient(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	if client.IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"publish empty topic", func() error { return client.Publish("", nil, 1, false) }, ErrInvalidTopic},
		{"publish invalid qos", func() error { return client.Publish("t", nil, 3, false) }, ErrInvalidQoS},
		{"publish too large", func() error { return client.Publish("t", make([]byte, maxPayloadSize+1), 1, false) }, ErrPublishFailed},
		{"publish disconnected", func() error { return client.Publish("t", nil, 1, false) }, ErrNotConnected},
		{"subscribe empty topic", func() error { return client.Subscribe("", 1, noop) }, ErrInvalidTopic},
		{"subscribe invalid qos", func() error { return client.Subscribe("t", 3, noop) }, ErrInvalidQoS},
		{"subscribe nil handler", func() error { return client.Subscribe("t", 1, nil) }, ErrSubscribeFailed},
		{"subscribe disconnected", func() error { return client.Subscribe("t", 1, noop) }, ErrNotConnected},
		{"unsubscribe empty topic", func() error { return client.Unsubscribe("") }, ErrInvalidTopic},
		{"unsubscribe disconnected", func() error { return client.Unsubscribe("t") }, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Client{}).HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Presence", Topics{}.Presence("runtime-01"), "graylogic/runtime/runtime-01/presence"},
		{"RPCRequest", Topics{}.RPCRequest("runtime-01", "req-1"), "graylogic/runtime/runtime-01/rpc/request/req-1"},
		{"RPCResponse", Topics{}.RPCResponse("runtime-01", "req-1"), "graylogic/runtime/runtime-01/rpc/response/req-1"},
		{"ComponentState", Topics{}.ComponentState("runtime-01", "lamp"), "graylogic/runtime/runtime-01/component/lamp/state"},
		{"ComponentLifecycle", Topics{}.ComponentLifecycle("runtime-01", "lamp"), "graylogic/runtime/runtime-01/component/lamp/lifecycle"},
		{"SystemStatus", Topics{}.SystemStatus(), "graylogic/system/status"},
		{"AllPresence", Topics{}.AllPresence(), "graylogic/runtime/+/presence"},
		{"AllRPCRequests", Topics{}.AllRPCRequests("runtime-01"), "graylogic/runtime/runtime-01/rpc/request/+"},
		{"AllComponentStates", Topics{}.AllComponentStates(), "graylogic/runtime/+/component/+/state"},
		{"AllTopics", Topics{}.AllTopics(), "graylogic/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestParsePresence(t *testing.T) {
	tests := []struct {
		topic    string
		instance string
		ok       bool
	}{
		{"graylogic/runtime/runtime-01/presence", "runtime-01", true},
		{"graylogic/runtime//presence", "", false},
		{"graylogic/runtime/a/b/presence", "", false},
		{"graylogic/system/status", "", false},
		{"graylogic/runtime/runtime-01/rpc/request/1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			instance, ok := ParsePresence(tt.topic)
			if instance != tt.instance || ok != tt.ok {
				t.Errorf("ParsePresence() = (%q, %v), want (%q, %v)", instance, ok, tt.instance, tt.ok)
			}
		})
	}
}

func TestParseRPCRequest(t *testing.T) {
	tests := []struct {
		topic     string
		instance  string
		requestID string
		ok        bool
	}{
		{"graylogic/runtime/runtime-01/rpc/request/req-1", "runtime-01", "req-1", true},
		{"graylogic/runtime/runtime-01/rpc/request/", "", "", false},
		{"graylogic/runtime/runtime-01/rpc/request/a/b", "", "", false},
		{"graylogic/runtime/runtime-01/rpc/response/req-1", "", "", false},
		{"other/runtime-01/rpc/request/req-1", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			instance, requestID, ok := ParseRPCRequest(tt.topic)
			if instance != tt.instance || requestID != tt.requestID || ok != tt.ok {
				t.Errorf("ParseRPCRequest() = (%q, %q, %v), want (%q, %q, %v)",
					instance, requestID, ok, tt.instance, tt.requestID, tt.ok)
			}
		})
	}
}

// fakeToken is a paho token that has already resolved.
type fakeToken struct {
	done bool
	err  error
}

func (f fakeToken) Wait() bool                     { return f.done }
func (f fakeToken) WaitTimeout(time.Duration) bool { return f.done }
func (f fakeToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (f fakeToken) Error() error                   { return f.err }

func TestWait(t *testing.T) {
	brokerErr := errors.New("not authorised")

	tests := []struct {
		name     string
		token    fakeToken
		wantErrs []error
	}{
		{"acknowledged", fakeToken{done: true}, nil},
		{"timed out", fakeToken{done: false}, []error{ErrPublishFailed, ErrTimeout}},
		{"rejected", fakeToken{done: true, err: brokerErr}, []error{ErrPublishFailed, brokerErr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wait(tt.token, time.Millisecond, ErrPublishFailed)
			if tt.wantErrs == nil {
				if err != nil {
					t.Errorf("wait() error = %v, want nil", err)
				}
				return
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("wait() error = %v, want it to wrap %v", err, want)
				}
			}
		})
	}
}
