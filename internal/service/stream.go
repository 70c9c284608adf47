package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/PartyLedger/internal/adapter/otel"
	"github.com/Strob0t/PartyLedger/internal/domain/event"
)

// DefaultHeartbeatInterval is the idle time after which a heartbeat is sent.
const DefaultHeartbeatInterval = 30 * time.Second

// State is the lifecycle phase of a Stream.
type State int32

const (
	StateReplaying State = iota
	StateSnapshot
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReplaying:
		return "replaying"
	case StateSnapshot:
		return "snapshot"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sink writes events to one client connection.
type Sink interface {
	Send(ctx context.Context, ev event.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev event.Event) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, ev event.Event) error { return f(ctx, ev) }

// Stream drives one viewer connection: replay of missed events, a viewer
// count snapshot, then live events interleaved with idle heartbeats.
type Stream struct {
	hub         *Hub
	topic       string
	lastEventID string
	transport   string
	heartbeat   time.Duration
	after       func(time.Duration) <-chan time.Time
	now         func() time.Time

	state atomic.Int32
	subID atomic.Pointer[string]
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithHeartbeat sets the idle interval between heartbeats.
func WithHeartbeat(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithTransport labels the stream for tracing ("sse", "ws").
func WithTransport(name string) StreamOption {
	return func(s *Stream) { s.transport = name }
}

// withClock replaces the timer source.
func withClock(after func(time.Duration) <-chan time.Time, now func() time.Time) StreamOption {
	return func(s *Stream) {
		s.after = after
		s.now = now
	}
}

// Stream prepares a viewer stream on topic. lastEventID is the id the client
// saw last, or empty for a fresh connection. Nothing is registered until Run.
func (h *Hub) Stream(topic, lastEventID string, opts ...StreamOption) *Stream {
	s := &Stream{
		hub:         h,
		topic:       topic,
		lastEventID: lastEventID,
		transport:   "sse",
		heartbeat:   DefaultHeartbeatInterval,
		after:       time.After,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle phase.
func (s *Stream) State() State { return State(s.state.Load()) }

// SubscriptionID returns the id of the underlying subscription once Run has
// registered it.
func (s *Stream) SubscriptionID() string {
	if id := s.subID.Load(); id != nil {
		return *id
	}
	return ""
}

func (s *Stream) setState(st State) { s.state.Store(int32(st)) }

// Run registers the viewer and pumps events into sink until ctx is done or
// the sink fails. The subscription is always released before Run returns.
// Cancellation is a normal end and yields nil.
func (s *Stream) Run(ctx context.Context, sink Sink) (err error) {
	s.setState(StateReplaying)
	started := time.Now()

	sub := s.hub.Resume(ctx, s.topic, s.lastEventID)
	s.subID.Store(&sub.ID)

	ctx, span := cfotel.StartStreamSpan(ctx, s.topic, sub.ID, s.transport)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream %s panicked: %v", sub.ID, r)
		}
		s.setState(StateClosed)
		cleanupCtx := context.WithoutCancel(ctx)
		s.hub.Disconnect(cleanupCtx, sub)
		if m := s.hub.metrics; m != nil {
			m.StreamDuration.Record(cleanupCtx, time.Since(started).Seconds(),
				metric.WithAttributes(
					attribute.String("topic", s.topic),
					attribute.String("stream.transport", s.transport),
				))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for _, ev := range sub.Backlog() {
		if err := s.send(ctx, sink, ev); err != nil {
			return ignoreCanceled(ctx, err)
		}
	}
	if n := len(sub.Backlog()); n > 0 && s.hub.metrics != nil {
		s.hub.metrics.EventsReplayed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("topic", s.topic)))
	}

	s.setState(StateSnapshot)
	if err := s.send(ctx, sink, event.ConnectionCount(s.hub.ConnectionCount(s.topic))); err != nil {
		return ignoreCanceled(ctx, err)
	}

	s.setState(StateLive)
	for {
		idle := s.after(s.heartbeat)
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Ready():
			for _, ev := range sub.Drain() {
				if err := s.send(ctx, sink, ev); err != nil {
					return ignoreCanceled(ctx, err)
				}
			}
		case <-idle:
			if err := s.send(ctx, sink, event.Heartbeat(s.now())); err != nil {
				return ignoreCanceled(ctx, err)
			}
			if s.hub.metrics != nil {
				s.hub.metrics.Heartbeats.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", s.topic)))
			}
		}
	}
}

func (s *Stream) send(ctx context.Context, sink Sink, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sink.Send(ctx, ev); err != nil {
		return fmt.Errorf("send %s %s: %w", ev.Type, ev.ID, err)
	}
	return nil
}

// ignoreCanceled treats failures caused by the client going away as a
// normal end of stream.
func ignoreCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
