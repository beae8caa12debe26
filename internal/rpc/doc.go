// Package rpc exposes the component manager as named procedures.
//
// A Server maps procedure names to manager operations:
//
//	components.add      {"id", "plugin", "config"}          -> component info
//	components.remove   {"id"}                              -> {"ok": true}
//	components.list                                         -> persisted component configs
//	components.status                                       -> live component info
//	components.execute  {"id", "action", "value"}           -> {"ok": true}
//	bindings.add        {"sourceId", "sourceState",
//	                     "targetId", "targetAction"}        -> binding status
//	bindings.remove     (same as bindings.add)              -> {"ok": true}
//	bindings.list                                           -> persisted binding configs
//	bindings.status                                         -> live binding status
//	plugins.list                                            -> plugin metadata
//	store.save                                              -> {"ok": true}
//
// bindings.add is only registered when binding support is enabled.
//
// Failures carry a stable code (see ErrorCode) so remote callers can react
// without parsing messages.
//
// MQTTTransport serves a Server on the instance's request topics, and
// Caller is the client side used to reach other instances.
package rpc
