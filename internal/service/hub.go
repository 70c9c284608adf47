package service

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/PartyLedger/internal/adapter/otel"
	"github.com/Strob0t/PartyLedger/internal/domain/event"
	"github.com/Strob0t/PartyLedger/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// topic is the per-inventory state. Everything in it is guarded by mu.
type topic struct {
	mu     sync.Mutex
	replay *replayBuffer
	subs   map[string]*Subscription
}

// Hub is the topic registry and broadcaster for live inventory events.
// Delivery to subscriptions happens while the topic lock is held, so every
// subscriber of a topic observes the same event order.
type Hub struct {
	mu          sync.RWMutex
	topics      map[string]*topic
	replayLimit int
	metrics     *cfotel.Metrics
	log         *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithReplayLimit sets how many domain events each topic keeps for replay.
func WithReplayLimit(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.replayLimit = n
		}
	}
}

// WithMetrics enables OpenTelemetry instruments.
func WithMetrics(m *cfotel.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		topics:      make(map[string]*topic),
		replayLimit: DefaultReplayLimit,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// topicFor returns the state for name, creating it on first use.
func (h *Hub) topicFor(name string) *topic {
	h.mu.RLock()
	t, ok := h.topics[name]
	h.mu.RUnlock()
	if ok {
		return t
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok = h.topics[name]; ok {
		return t
	}
	t = &topic{
		replay: newReplayBuffer(h.replayLimit),
		subs:   make(map[string]*Subscription),
	}
	h.topics[name] = t
	return t
}

func (h *Hub) lookup(name string) *topic {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.topics[name]
}

// Connect registers a new viewer on name with an empty backlog.
func (h *Hub) Connect(ctx context.Context, name string) *Subscription {
	return h.Resume(ctx, name, "")
}

// Resume registers a new viewer on name and captures the events it missed
// after lastEventID. Registration and backlog capture happen under the
// topic lock, so no event can fall between the backlog and live delivery.
// The other viewers of the topic are told the new viewer count.
func (h *Hub) Resume(ctx context.Context, name, lastEventID string) *Subscription {
	t := h.topicFor(name)
	sub := newSubscription(name)

	t.mu.Lock()
	sub.backlog = t.replay.since(lastEventID)
	t.subs[sub.ID] = sub
	viewers := len(t.subs)
	count := event.ConnectionCount(viewers)
	delivered, dropped := h.deliverLocked(t, count, sub.ID)
	t.mu.Unlock()

	h.recordDelivery(ctx, name, count, delivered, dropped)
	if h.metrics != nil {
		h.metrics.Subscribers.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", name)))
	}
	h.log.Info("viewer connected",
		"topic", name,
		"subscription_id", sub.ID,
		"viewers", viewers,
		"backlog", len(sub.backlog),
	)
	return sub
}

// Disconnect removes sub from its topic and tells the remaining viewers the
// new count. The replay buffer is kept. Calling it more than once is a no-op.
func (h *Hub) Disconnect(ctx context.Context, sub *Subscription) {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		defer sub.box.close()

		t := h.lookup(sub.Topic)
		if t == nil {
			return
		}
		t.mu.Lock()
		if _, ok := t.subs[sub.ID]; !ok {
			t.mu.Unlock()
			return
		}
		delete(t.subs, sub.ID)
		viewers := len(t.subs)
		count := event.ConnectionCount(viewers)
		delivered, dropped := h.deliverLocked(t, count, "")
		t.mu.Unlock()

		h.recordDelivery(ctx, sub.Topic, count, delivered, dropped)
		if h.metrics != nil {
			h.metrics.Subscribers.Add(ctx, -1, metric.WithAttributes(attribute.String("topic", sub.Topic)))
		}
		h.log.Info("viewer disconnected",
			"topic", sub.Topic,
			"subscription_id", sub.ID,
			"viewers", viewers,
		)
	})
}

// ConnectionCount returns the number of live subscriptions on name.
func (h *Hub) ConnectionCount(name string) int {
	t := h.lookup(name)
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Since returns the replayable events of name recorded after lastEventID.
func (h *Hub) Since(name, lastEventID string) []event.Event {
	t := h.lookup(name)
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replay.since(lastEventID)
}

// TopicCount returns the number of topics that have been touched so far.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// Publish records ev for replay (domain events only) and enqueues it to
// every current subscriber of name. It never blocks on a slow viewer and
// never fails; a topic with no viewers still records the event.
func (h *Hub) Publish(ctx context.Context, name string, ev event.Event) {
	t := h.topicFor(name)

	t.mu.Lock()
	if ev.Type.Replayable() {
		t.replay.record(ev)
	}
	delivered, dropped := h.deliverLocked(t, ev, "")
	t.mu.Unlock()

	if h.metrics != nil {
		h.metrics.EventsPublished.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", name),
			attribute.String("event.type", string(ev.Type)),
		))
	}
	h.recordDelivery(ctx, name, ev, delivered, dropped)
}

// BroadcastEvent builds an event from payload and publishes it. Producers
// use it through the broadcast.Broadcaster port; failures are logged and
// never returned.
func (h *Hub) BroadcastEvent(ctx context.Context, name, eventType string, payload any) {
	ctx, span := cfotel.StartPublishSpan(ctx, name, eventType)
	defer span.End()

	ev, err := event.New(event.Type(eventType), payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.Error("build live event", "topic", name, "type", eventType, "error", err)
		return
	}
	h.Publish(ctx, name, ev)
}

// deliverLocked enqueues ev to every subscription of t except skipID.
// The caller must hold t.mu.
func (h *Hub) deliverLocked(t *topic, ev event.Event, skipID string) (delivered, dropped int) {
	for id, sub := range t.subs {
		if id == skipID {
			continue
		}
		if sub.box.push(ev) {
			delivered++
			continue
		}
		dropped++
		h.log.Debug("live event not delivered, mailbox closed",
			"subscription_id", id,
			"type", ev.Type,
			"event_id", ev.ID,
		)
	}
	return delivered, dropped
}

func (h *Hub) recordDelivery(ctx context.Context, name string, ev event.Event, delivered, dropped int) {
	if h.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("topic", name),
		attribute.String("event.type", string(ev.Type)),
	)
	if delivered > 0 {
		h.metrics.EventsDelivered.Add(ctx, int64(delivered), attrs)
	}
	if dropped > 0 {
		h.metrics.EventsDropped.Add(ctx, int64(dropped), attrs)
	}
}
