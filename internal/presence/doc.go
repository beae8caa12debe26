// Package presence tracks runtime instances on the MQTT bus and publishes
// this instance's component state for its peers.
//
// Every runtime publishes a retained presence message on
// graylogic/runtime/{instance}/presence; the broker publishes the
// "offline" last will on an unexpected disconnect. Tracker follows all
// instances by subscribing to graylogic/runtime/+/presence, and its
// Available method is the presence-tracking capability that gates binding
// support when bindings.require_presence is set.
//
// StatePublisher mirrors local component state onto
// graylogic/runtime/{instance}/component/{id}/state (retained) and
// announces lifecycle events on .../component/{id}/lifecycle.
//
// # Usage
//
//	tracker := presence.NewTracker(client, cfg.Instance.ID)
//	if err := tracker.Start(); err != nil {
//	    return err
//	}
//	defer tracker.Stop()
//
//	pub := presence.NewStatePublisher(client, cfg.Instance.ID)
//	pub.Start()
//	defer pub.Stop()
//	stop := component.Watch(registry, pub.Observe) // on the event loop
package presence
