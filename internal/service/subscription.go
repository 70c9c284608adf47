package service

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Strob0t/PartyLedger/internal/domain/event"
)

// Subscription is one viewer's attachment to a topic. It is created by
// Hub.Connect or Hub.Resume and must be released with Hub.Disconnect.
type Subscription struct {
	ID          string
	Topic       string
	ConnectedAt time.Time

	box     *mailbox
	backlog []event.Event
	once    sync.Once
}

func newSubscription(topic string) *Subscription {
	return &Subscription{
		ID:          ulid.Make().String(),
		Topic:       topic,
		ConnectedAt: time.Now(),
		box:         newMailbox(),
	}
}

// Backlog returns the events missed before the subscription was registered.
// It is empty for fresh connections and for reconnects whose last seen event
// has already been evicted.
func (s *Subscription) Backlog() []event.Event { return s.backlog }

// Ready signals that Drain has something to return.
func (s *Subscription) Ready() <-chan struct{} { return s.box.ready }

// Drain returns all pending live events in publish order.
func (s *Subscription) Drain() []event.Event { return s.box.drain() }

// Pending reports the number of queued live events.
func (s *Subscription) Pending() int { return s.box.len() }
