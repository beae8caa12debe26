package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the component runtime.
//
// Every runtime instance owns the subtree graylogic/runtime/{instance}/.
const (
	// TopicPrefixRuntime is the base for all runtime topics.
	TopicPrefixRuntime = "graylogic/runtime"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for runtime MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.RPCRequest("runtime-01", "0b6e…")
//	// Returns: "graylogic/runtime/runtime-01/rpc/request/0b6e…"
type Topics struct{}

// =============================================================================
// Presence Topics
// =============================================================================

// Presence returns the retained presence topic of an instance.
//
// Example: graylogic/runtime/runtime-01/presence
func (Topics) Presence(instance string) string {
	return fmt.Sprintf("%s/%s/presence", TopicPrefixRuntime, instance)
}

// =============================================================================
// RPC Topics
// =============================================================================

// RPCRequest returns the topic a request to an instance is published on.
//
// Example: graylogic/runtime/runtime-01/rpc/request/req-abc123
func (Topics) RPCRequest(instance, requestID string) string {
	return fmt.Sprintf("%s/%s/rpc/request/%s", TopicPrefixRuntime, instance, requestID)
}

// RPCResponse returns the default topic the reply to a request is published on.
//
// Example: graylogic/runtime/runtime-01/rpc/response/req-abc123
func (Topics) RPCResponse(instance, requestID string) string {
	return fmt.Sprintf("%s/%s/rpc/response/%s", TopicPrefixRuntime, instance, requestID)
}

// =============================================================================
// Component Topics
// =============================================================================

// ComponentState returns the retained state topic of a component.
//
// Example: graylogic/runtime/runtime-01/component/living-temp/state
func (Topics) ComponentState(instance, componentID string) string {
	return fmt.Sprintf("%s/%s/component/%s/state", TopicPrefixRuntime, instance, componentID)
}

// ComponentLifecycle returns the topic for component added/removed events.
//
// Example: graylogic/runtime/runtime-01/component/living-temp/lifecycle
func (Topics) ComponentLifecycle(instance, componentID string) string {
	return fmt.Sprintf("%s/%s/component/%s/lifecycle", TopicPrefixRuntime, instance, componentID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllPresence returns a pattern matching the presence of every instance.
//
// Pattern: graylogic/runtime/+/presence
func (Topics) AllPresence() string {
	return fmt.Sprintf("%s/+/presence", TopicPrefixRuntime)
}

// AllRPCRequests returns a pattern matching every request to instance.
//
// Pattern: graylogic/runtime/runtime-01/rpc/request/+
func (Topics) AllRPCRequests(instance string) string {
	return fmt.Sprintf("%s/%s/rpc/request/+", TopicPrefixRuntime, instance)
}

// AllComponentStates returns a pattern matching every component state of
// every instance.
//
// Pattern: graylogic/runtime/+/component/+/state
func (Topics) AllComponentStates() string {
	return fmt.Sprintf("%s/+/component/+/state", TopicPrefixRuntime)
}

// AllTopics returns a pattern matching all Gray Logic topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: graylogic/#
func (Topics) AllTopics() string {
	return "graylogic/#"
}

// =============================================================================
// Topic Parsing
// =============================================================================

// ParsePresence extracts the instance id from a presence topic.
func ParsePresence(topic string) (instance string, ok bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixRuntime+"/")
	if !ok {
		return "", false
	}
	instance, ok = strings.CutSuffix(rest, "/presence")
	if !ok || instance == "" || strings.Contains(instance, "/") {
		return "", false
	}
	return instance, true
}

// ParseRPCRequest extracts the instance and request id from a request topic.
func ParseRPCRequest(topic string) (instance, requestID string, ok bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixRuntime+"/")
	if !ok {
		return "", "", false
	}
	instance, requestID, ok = strings.Cut(rest, "/rpc/request/")
	if !ok || instance == "" || requestID == "" ||
		strings.Contains(instance, "/") || strings.Contains(requestID, "/") {
		return "", "", false
	}
	return instance, requestID, true
}
