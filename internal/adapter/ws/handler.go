// Package ws implements the WebSocket transport for live inventory events.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/PartyLedger/internal/config"
	"github.com/Strob0t/PartyLedger/internal/domain/event"
	"github.com/Strob0t/PartyLedger/internal/logger"
	"github.com/Strob0t/PartyLedger/internal/service"
)

// Handler upgrades viewer connections to WebSocket and runs the same stream
// driver as the SSE endpoint. Each message is one JSON envelope.
type Handler struct {
	hub          *service.Hub
	heartbeat    time.Duration
	writeTimeout time.Duration
}

// NewHandler creates a WebSocket handler backed by hub.
func NewHandler(hub *service.Hub, cfg config.Stream) *Handler {
	return &Handler{
		hub:          hub,
		heartbeat:    cfg.HeartbeatInterval,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Serve upgrades the request and streams topic until either side goes away.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, topic, lastEventID string) {
	log := logger.FromContext(r.Context(), slog.Default())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		log.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Viewers never send anything; CloseRead answers pings and cancels ctx
	// once the client closes.
	ctx := conn.CloseRead(r.Context())

	stream := h.hub.Stream(topic, lastEventID,
		service.WithHeartbeat(h.heartbeat),
		service.WithTransport("ws"),
	)
	if err := stream.Run(ctx, &sink{conn: conn, writeTimeout: h.writeTimeout}); err != nil {
		log.Warn("websocket stream ended with error",
			"topic", topic,
			"subscription_id", stream.SubscriptionID(),
			"error", err,
		)
		_ = conn.Close(websocket.StatusInternalError, "stream failed")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

type sink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (s *sink) Send(ctx context.Context, ev event.Event) error {
	data, err := ev.MarshalEnvelope()
	if err != nil {
		return err
	}
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}
