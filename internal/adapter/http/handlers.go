package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Strob0t/PartyLedger/internal/adapter/ws"
	"github.com/Strob0t/PartyLedger/internal/config"
	"github.com/Strob0t/PartyLedger/internal/domain/event"
	"github.com/Strob0t/PartyLedger/internal/service"
)

// Handlers holds the services the HTTP routes depend on.
type Handlers struct {
	Hub      *service.Hub
	Notifier *service.InventoryNotifier
	Frames   *FrameEncoder
	Sockets  *ws.Handler
	Stream   config.Stream
}

// StreamEvents handles GET /api/v1/inventories/{slug}/events as a
// Server-Sent-Events stream.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's WriteTimeout; each frame sets its own
	// deadline instead.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		writeInternalError(w, r, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	if err := rc.Flush(); err != nil {
		hdr.Del("Content-Type")
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream := h.Hub.Stream(slug, lastEventID(r),
		service.WithHeartbeat(h.Stream.HeartbeatInterval),
		service.WithTransport("sse"),
	)
	sink := &sseSink{w: w, rc: rc, frames: h.Frames, writeTimeout: h.Stream.WriteTimeout}
	if err := stream.Run(r.Context(), sink); err != nil {
		requestLogger(r).Warn("event stream ended with error",
			"topic", slug,
			"subscription_id", stream.SubscriptionID(),
			"error", err,
		)
	}
}

// StreamEventsWS handles GET /api/v1/inventories/{slug}/ws.
func (h *Handlers) StreamEventsWS(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	h.Sockets.Serve(w, r, slug, lastEventID(r))
}

type viewersResponse struct {
	Slug    string `json:"slug"`
	Viewers int    `json:"viewers"`
}

// Viewers handles GET /api/v1/inventories/{slug}/viewers.
func (h *Handlers) Viewers(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewersResponse{Slug: slug, Viewers: h.Hub.ConnectionCount(slug)})
}

// EventHistory handles GET /api/v1/inventories/{slug}/events/history?after=<id>.
func (h *Handlers) EventHistory(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	after := r.URL.Query().Get("after")
	writeJSON(w, http.StatusOK, event.NewHistory(slug, after, h.Hub.Since(slug, after)))
}

type publishRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type publishResponse struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
	Event  string `json:"event"`
}

// PublishEvent handles POST /api/v1/inventories/{slug}/events. It is the
// ingress used by the inventory CRUD layer after a successful mutation.
func (h *Handlers) PublishEvent(w http.ResponseWriter, r *http.Request) {
	slug, ok := slugParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeBody[publishRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if req.Event == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}
	if err := h.Notifier.Publish(r.Context(), slug, req.Event, req.Data); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, publishResponse{Status: "accepted", Topic: slug, Event: req.Event})
}
