// Package bus distributes interpreter events to live observers and
// persistent journals. The tick driver publishes; debug overlays, HUD
// widgets, telemetry and the event stores subscribe, none of them able to
// slow the game loop down.
package bus

import "github.com/emberforge/scriptflow/interp"

// EventBus fans interpreter events out to subscribers.
type EventBus interface {
	// Publish delivers an event to every matching subscriber. It never
	// blocks: a subscriber that cannot keep up loses events.
	Publish(event interp.Event)

	// Subscribe registers a subscriber for one interpreter run. The
	// returned Subscription must be closed when done.
	Subscribe(runID string) Subscription

	// SubscribeAll registers a subscriber receiving events from every run,
	// for tools watching several interpreters at once. The returned
	// Subscription must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription is one observer's view of the feed.
type Subscription interface {
	// Events returns the channel events are delivered on. It is closed
	// when the subscription or the bus closes.
	Events() <-chan interp.Event

	// Close unsubscribes and releases resources.
	Close() error
}
