package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/PartyLedger/internal/middleware"
)

// Guards are the optional protections applied per route group. Zero values
// disable the corresponding guard.
type Guards struct {
	RateLimit      *middleware.RateLimiter   // per-IP limit on stream connects
	Streams        *middleware.StreamLimiter // cap on concurrently open streams
	Idempotency    func(http.Handler) http.Handler
	RequestTimeout time.Duration // non-stream routes only
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, g Guards) {
	r.Route("/api/v1", func(r chi.Router) {
		// Live streams (no request timeout)
		r.Group(func(r chi.Router) {
			if g.RateLimit != nil {
				r.Use(g.RateLimit.Handler)
			}
			r.Use(g.Streams.Handler)

			r.Get("/inventories/{slug}/events", h.StreamEvents)
			r.Get("/inventories/{slug}/ws", h.StreamEventsWS)
		})

		r.Group(func(r chi.Router) {
			if g.RequestTimeout > 0 {
				r.Use(chimw.Timeout(g.RequestTimeout))
			}

			// Version
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
			})

			r.Get("/inventories/{slug}/viewers", h.Viewers)
			r.Get("/inventories/{slug}/events/history", h.EventHistory)

			publish := r.With()
			if g.Idempotency != nil {
				publish = r.With(g.Idempotency)
			}
			publish.Post("/inventories/{slug}/events", h.PublishEvent)
		})
	})
}
