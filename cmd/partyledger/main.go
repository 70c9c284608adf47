package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	cfhttp "github.com/Strob0t/PartyLedger/internal/adapter/http"
	cfotel "github.com/Strob0t/PartyLedger/internal/adapter/otel"
	"github.com/Strob0t/PartyLedger/internal/adapter/ristretto"
	"github.com/Strob0t/PartyLedger/internal/adapter/ws"
	"github.com/Strob0t/PartyLedger/internal/config"
	"github.com/Strob0t/PartyLedger/internal/logger"
	"github.com/Strob0t/PartyLedger/internal/middleware"
	"github.com/Strob0t/PartyLedger/internal/port/cache"
	"github.com/Strob0t/PartyLedger/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"heartbeat_interval", cfg.Stream.HeartbeatInterval,
		"replay_limit", cfg.Stream.ReplayLimit,
		"max_streams", cfg.Stream.MaxStreams,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(flushCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	// One ristretto instance backs both the SSE frame cache and the
	// idempotency store; keys are prefixed per use.
	var frameCache cache.Cache
	if cfg.Cache.FrameMaxSizeMB > 0 {
		rc, err := ristretto.New(cfg.Cache.FrameMaxSizeMB << 20)
		if err != nil {
			return fmt.Errorf("frame cache: %w", err)
		}
		defer func() {
			slog.Info("frame cache closed", "hit_ratio", rc.HitRatio())
			rc.Close()
		}()
		frameCache = rc
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	stopCleanup := limiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	defer stopCleanup()

	// --- Services ---
	hub := service.NewHub(
		service.WithReplayLimit(cfg.Stream.ReplayLimit),
		service.WithMetrics(metrics),
		service.WithLogger(log),
	)

	// --- HTTP ---
	handlers := &cfhttp.Handlers{
		Hub:      hub,
		Notifier: service.NewInventoryNotifier(hub),
		Frames:   cfhttp.NewFrameEncoder(frameCache, cfg.Cache.FrameTTL),
		Sockets:  ws.NewHandler(hub, cfg.Stream),
		Stream:   cfg.Stream,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler(hub))

	cfhttp.MountRoutes(r, handlers, cfhttp.Guards{
		RateLimit:      limiter,
		Streams:        middleware.NewStreamLimiter(cfg.Stream.MaxStreams),
		Idempotency:    middleware.Idempotency(frameCache, cfg.Cache.IdempotencyTTL),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Open streams see the shutdown signal through their request context.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server", "open_topics", hub.TopicCount())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type healthStatus struct {
	Status string `json:"status"`
	Topics int    `json:"topics"`
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(hub *service.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthStatus{Status: "ok", Topics: hub.TopicCount()})
	}
}
