package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/PartyLedger/internal/domain/event"
	"github.com/Strob0t/PartyLedger/internal/port/cache"
)

const frameNamespace = "sse-frame"

// FrameEncoder renders events as SSE frames. Domain events are fanned out to
// every viewer of a topic, so their frames are memoised by event id.
type FrameEncoder struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewFrameEncoder creates an encoder. A nil cache disables memoisation.
func NewFrameEncoder(c cache.Cache, ttl time.Duration) *FrameEncoder {
	return &FrameEncoder{cache: c, ttl: ttl}
}

// Encode returns the SSE frame for ev.
func (f *FrameEncoder) Encode(ctx context.Context, ev event.Event) ([]byte, error) {
	if f == nil || f.cache == nil || !ev.Type.Replayable() {
		return ev.Frame()
	}

	key := cache.Key(frameNamespace, ev.ID)
	if frame, ok, err := f.cache.Get(ctx, key); err == nil && ok {
		return frame, nil
	}

	frame, err := ev.Frame()
	if err != nil {
		return nil, err
	}
	if err := f.cache.Set(ctx, key, frame, f.ttl); err != nil {
		slog.Debug("frame cache set failed", "event_id", ev.ID, "error", err)
	}
	return frame, nil
}

// sseSink writes frames to one text/event-stream response.
type sseSink struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	frames       *FrameEncoder
	writeTimeout time.Duration
}

func (s *sseSink) Send(ctx context.Context, ev event.Event) error {
	frame, err := s.frames.Encode(ctx, ev)
	if err != nil {
		return err
	}
	if s.writeTimeout > 0 {
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}
