// Package metrics exposes Prometheus metrics for the component runtime.
//
// Counters are fed by observers the other packages already offer: the
// binding forward observer, the store save observer, component.Watch and
// the rpc call observer. Gauges for live components and bindings by state
// are collected at scrape time from the manager, so they can never drift
// from the event loop's view.
//
// Metrics:
//   - graylogic_runtime_components
//   - graylogic_runtime_bindings{state}
//   - graylogic_runtime_binding_forwards_total{result}
//   - graylogic_runtime_store_saves_total{result}
//   - graylogic_runtime_store_save_duration_seconds
//   - graylogic_runtime_state_changes_total
//   - graylogic_runtime_rpc_calls_total{method,code}
//
// The registry also carries the Go runtime and process collectors.
package metrics
