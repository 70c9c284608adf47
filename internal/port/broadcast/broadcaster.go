// Package broadcast defines the port producers use to push live inventory events.
package broadcast

import "context"

// Broadcaster fans an event out to every viewer of a topic.
// Producers call it after their change is committed; it never fails from the
// caller's point of view.
type Broadcaster interface {
	// BroadcastEvent publishes a typed event with a JSON-object payload to topic.
	BroadcastEvent(ctx context.Context, topic, eventType string, payload any)
}
