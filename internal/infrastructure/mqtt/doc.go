// Package mqtt provides MQTT client connectivity for the component runtime.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Retained instance presence with a Last Will and Testament (LWT)
//   - Connection health monitoring
//
// # Architecture
//
// Runtime instances share one broker. Each instance owns the topic subtree
// graylogic/runtime/{instance}/ and uses it for presence, RPC requests and
// responses, and component state.
//
//	runtime-01 ↔ MQTT Broker ↔ runtime-02
//	                 ↕
//	          UI / tooling (RPC)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Instance.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Serve RPC requests addressed to this instance
//	err = client.Subscribe(mqtt.Topics{}.AllRPCRequests(cfg.Instance.ID), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Request: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
