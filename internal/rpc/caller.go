package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-runtime/internal/infrastructure/mqtt"
)

// Caller invokes procedures on a remote runtime instance over MQTT.
//
// Each call uses a fresh request id, subscribes to the matching response
// topic for the duration of the call and unsubscribes afterwards.
//
// Thread Safety:
//   - Call is safe for concurrent use.
type Caller struct {
	bus Bus
	qos byte
}

// NewCaller creates a caller on bus.
func NewCaller(bus Bus) *Caller {
	return &Caller{bus: bus, qos: 1}
}

// Call invokes method on instance and decodes the result into out
// (which may be nil).
//
// Returns:
//   - *Error with the remote code when the procedure failed
//   - ctx.Err() if no reply arrives in time
func (c *Caller) Call(ctx context.Context, instance, method string, params, out any) error {
	requestID := uuid.NewString()
	topics := mqtt.Topics{}
	replyTo := topics.RPCResponse(instance, requestID)

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		raw = data
	}
	payload, err := json.Marshal(Request{Method: method, Params: raw, ReplyTo: replyTo})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	replies := make(chan Response, 1)
	err = c.bus.Subscribe(replyTo, c.qos, func(_ string, p []byte) error {
		var resp Response
		if err := json.Unmarshal(p, &resp); err != nil {
			return err
		}
		if resp.ID != requestID {
			return nil
		}
		select {
		case replies <- resp:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to reply topic: %w", err)
	}
	defer c.bus.Unsubscribe(replyTo) //nolint:errcheck // Best effort; the topic is unique to this call

	if err := c.bus.Publish(topics.RPCRequest(instance, requestID), payload, c.qos, false); err != nil {
		return fmt.Errorf("publishing request: %w", err)
	}

	select {
	case resp := <-replies:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
