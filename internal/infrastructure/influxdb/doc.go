// Package influxdb provides InfluxDB connectivity for the Gray Logic runtime.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, component state writes and health monitoring.
//
// # Purpose
//
// The runtime records every component state change as a point in the
// component_state measurement, so the history of a variable or sensor can
// be graphed and queried without the runtime keeping it.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "graylogic",
//	    Bucket:  "runtime",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteComponentState(influxdb.ComponentState{
//	    Instance:    "hall",
//	    ComponentID: "lamp",
//	    Plugin:      "core/variable-bool",
//	    Member:      "value",
//	    Value:       true,
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (SetOnError). Connection and health check errors are returned
// directly.
package influxdb
