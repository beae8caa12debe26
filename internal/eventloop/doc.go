// Package eventloop serialises runtime work onto a single goroutine.
//
// The component registry, hosts and bindings assume exactly one mutation in
// flight at a time. HTTP handlers, MQTT callbacks and plugin goroutines all
// run concurrently, so they hand their work to a Loop:
//
//	loop := eventloop.New()
//	go loop.Run(ctx)
//
//	err := loop.Do(ctx, func() error {
//	    return registry.Add(host)
//	})
//
// Post is the fire-and-forget form used by plugin logic to publish state
// from its own goroutines.
package eventloop
