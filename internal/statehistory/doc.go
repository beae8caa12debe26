// Package statehistory records component state changes as time series.
//
// Recorder is fed component.Change values from the event loop (through
// component.Watch) and writes one InfluxDB point per state value on a
// worker goroutine. When a component is added, its current state is
// recorded too, so every series starts with a known value.
package statehistory
