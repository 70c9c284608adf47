package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered records and releases log outputs.
type Closer interface {
	Close()
}

// AsyncHandler wraps an slog.Handler with a buffered channel and worker pool
// so that hot paths such as event fan-out never wait on log I/O.
type AsyncHandler struct {
	inner   slog.Handler
	shared  *asyncShared
	dropped *atomic.Int64
}

type asyncShared struct {
	ch chan asyncRecord
	wg sync.WaitGroup

	mu     sync.RWMutex // guards closed against sends racing Close
	closed bool
}

// asyncRecord pairs a record with the handler chain that must format it,
// so WithAttrs/WithGroup derivatives keep their attributes.
type asyncRecord struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		shared:  &asyncShared{ch: make(chan asyncRecord, chanSize)},
		dropped: &atomic.Int64{},
	}
	for range workers {
		h.shared.wg.Add(1)
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.shared.wg.Done()
	for r := range h.shared.ch {
		_ = r.h.Handle(context.Background(), r.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Drops if the channel is full or closed.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.shared.mu.RLock()
	defer h.shared.mu.RUnlock()
	if h.shared.closed {
		h.dropped.Add(1)
		return nil
	}
	select {
	case h.shared.ch <- asyncRecord{h: h.inner, rec: rec.Clone()}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a new AsyncHandler sharing the same channel but wrapping a new inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), shared: h.shared, dropped: h.dropped}
}

// WithGroup returns a new AsyncHandler sharing the same channel but wrapping a new inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), shared: h.shared, dropped: h.dropped}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and waits for the workers to drain.
// Safe to call more than once.
func (h *AsyncHandler) Close() {
	h.shared.mu.Lock()
	if !h.shared.closed {
		h.shared.closed = true
		close(h.shared.ch)
	}
	h.shared.mu.Unlock()
	h.shared.wg.Wait()
}
