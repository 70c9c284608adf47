package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/PartyLedger/internal/service"
)

func TestHealthHandler(t *testing.T) {
	hub := service.NewHub(service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	hub.BroadcastEvent(context.Background(), "party-1", "item_added", nil)

	rec := httptest.NewRecorder()
	healthHandler(hub)(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got healthStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "ok" || got.Topics != 1 {
		t.Fatalf("health = %+v, want ok/1", got)
	}
}
