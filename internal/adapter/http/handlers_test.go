package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/PartyLedger/internal/adapter/http"
	"github.com/Strob0t/PartyLedger/internal/adapter/ws"
	"github.com/Strob0t/PartyLedger/internal/config"
	"github.com/Strob0t/PartyLedger/internal/domain/event"
	"github.com/Strob0t/PartyLedger/internal/middleware"
	"github.com/Strob0t/PartyLedger/internal/service"
)

type testEnv struct {
	hub *service.Hub
	srv *httptest.Server
}

func newTestEnv(t *testing.T, limiter *middleware.RateLimiter) *testEnv {
	t.Helper()
	hub := service.NewHub(service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	streamCfg := config.Stream{HeartbeatInterval: time.Hour, ReplayLimit: 100, WriteTimeout: time.Second}
	h := &cfhttp.Handlers{
		Hub:      hub,
		Notifier: service.NewInventoryNotifier(hub),
		Frames:   cfhttp.NewFrameEncoder(nil, 0),
		Sockets:  ws.NewHandler(hub, streamCfg),
		Stream:   streamCfg,
	}
	r := chi.NewRouter()
	r.Use(cfhttp.Logger)
	cfhttp.MountRoutes(r, h, cfhttp.Guards{RateLimit: limiter, RequestTimeout: 5 * time.Second})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{hub: hub, srv: srv}
}

type sseFrame struct {
	id    string
	event string
	data  string
}

type sseReader struct {
	t    *testing.T
	resp *http.Response
	br   *bufio.Reader
}

func (e *testEnv) openStream(t *testing.T, slug string, header http.Header) *sseReader {
	t.Helper()
	return e.openStreamQuery(t, slug, "", header)
}

func (e *testEnv) openStreamQuery(t *testing.T, slug, query string, header http.Header) *sseReader {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/api/v1/inventories/"+slug+"/events"+query, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	return &sseReader{t: t, resp: resp, br: bufio.NewReader(resp.Body)}
}

func (s *sseReader) next() sseFrame {
	s.t.Helper()
	type result struct {
		f   sseFrame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var f sseFrame
		for {
			line, err := s.br.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			line = strings.TrimSuffix(line, "\n")
			switch {
			case line == "":
				ch <- result{f: f}
				return
			case strings.HasPrefix(line, "id: "):
				f.id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				f.data = strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			s.t.Fatalf("read frame: %v", r.err)
		}
		return r.f
	case <-time.After(2 * time.Second):
		s.t.Fatal("timed out waiting for SSE frame")
		return sseFrame{}
	}
}

func (s *sseReader) close() { _ = s.resp.Body.Close() }

func waitForViewers(t *testing.T, hub *service.Hub, slug string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(slug) != want {
		if time.Now().After(deadline) {
			t.Fatalf("viewers = %d, want %d", hub.ConnectionCount(slug), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (e *testEnv) post(t *testing.T, slug, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.srv.URL+"/api/v1/inventories/"+slug+"/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestStreamEvents_HeadersAndSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.openStream(t, "party-1", nil)

	for header, want := range map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"X-Accel-Buffering": "no",
	} {
		if got := s.resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	f := s.next()
	if f.event != "connection_count" || f.id == "" {
		t.Fatalf("first frame = %+v, want connection_count", f)
	}
	var env1 event.Envelope
	if err := json.Unmarshal([]byte(f.data), &env1); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if env1.EventID != f.id || string(env1.Data) != `{"viewers":1}` {
		t.Fatalf("envelope = %+v", env1)
	}
}

func TestStreamEvents_LiveDeliveryAndDisconnect(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.openStream(t, "party-1", nil)
	s.next()

	resp := env.post(t, "party-1", `{"event":"item_added","data":{"name":"Torch"}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d, want 202", resp.StatusCode)
	}

	f := s.next()
	if f.event != "item_added" {
		t.Fatalf("frame event = %q, want item_added", f.event)
	}
	var payload event.Envelope
	if err := json.Unmarshal([]byte(f.data), &payload); err != nil {
		t.Fatal(err)
	}
	if string(payload.Data) != `{"name":"Torch"}` || payload.Event != event.TypeItemAdded {
		t.Fatalf("payload = %+v", payload)
	}

	s.close()
	waitForViewers(t, env.hub, "party-1", 0)
}

func TestStreamEvents_ResumeWithLastEventID(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, _ := event.New(event.TypeItemAdded, map[string]string{"name": "Rope"})
	second, _ := event.New(event.TypeCurrencyUpdated, map[string]int{"gold": 4})
	env.hub.Publish(ctx, "party-1", first)
	env.hub.Publish(ctx, "party-1", second)

	tests := []struct {
		name   string
		header http.Header
		query  string
	}{
		{"header", http.Header{"Last-Event-Id": {first.ID}}, ""},
		{"query", nil, "?last_event_id=" + first.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := env.openStreamQuery(t, "party-1", tt.query, tt.header)
			defer s.close()

			if f := s.next(); f.id != second.ID || f.event != "currency_updated" {
				t.Fatalf("replayed %+v, want %s", f, second.ID)
			}
			if f := s.next(); f.event != "connection_count" {
				t.Fatalf("after replay got %q, want connection_count", f.event)
			}
		})
	}
}

func TestStreamEvents_CountUpdatesOtherViewers(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.openStream(t, "party-1", nil)
	a.next()

	b := env.openStream(t, "party-1", nil)
	if f := b.next(); !strings.Contains(f.data, `"viewers":2`) {
		t.Fatalf("B snapshot = %s, want 2 viewers", f.data)
	}
	if f := a.next(); f.event != "connection_count" || !strings.Contains(f.data, `"viewers":2`) {
		t.Fatalf("A update = %+v, want 2 viewers", f)
	}

	b.close()
	if f := a.next(); !strings.Contains(f.data, `"viewers":1`) {
		t.Fatalf("A update after B left = %s, want 1 viewer", f.data)
	}
}

func TestViewers(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.openStream(t, "party-1", nil)
	s.next()

	resp, err := http.Get(env.srv.URL + "/api/v1/inventories/party-1/viewers")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Slug    string `json:"slug"`
		Viewers int    `json:"viewers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Slug != "party-1" || body.Viewers != 1 {
		t.Fatalf("body = %+v, want party-1/1", body)
	}
}

func TestEventHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, _ := event.New(event.TypeItemAdded, nil)
	second, _ := event.New(event.TypeItemRemoved, nil)
	env.hub.Publish(ctx, "party-1", first)
	env.hub.Publish(ctx, "party-1", second)

	tests := []struct {
		name      string
		after     string
		wantCount int
	}{
		{"no cursor", "", 0},
		{"unknown cursor", "gone", 0},
		{"first", first.ID, 1},
		{"latest", second.ID, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(env.srv.URL + "/api/v1/inventories/party-1/events/history?after=" + tt.after)
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var h event.History
			if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
				t.Fatal(err)
			}
			if h.Count != tt.wantCount || len(h.Events) != tt.wantCount || h.Topic != "party-1" {
				t.Fatalf("history = %+v, want %d events", h, tt.wantCount)
			}
		})
	}
}

func TestPublishEvent_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"accepted", `{"event":"currency_updated","data":{"gold":1}}`, http.StatusAccepted, ""},
		{"no data", `{"event":"item_removed"}`, http.StatusAccepted, ""},
		{"missing event", `{"data":{}}`, http.StatusBadRequest, "event is required"},
		{"transient type", `{"event":"heartbeat","data":{}}`, http.StatusBadRequest, "unsupported event type"},
		{"unknown type", `{"event":"dragon_slain","data":{}}`, http.StatusBadRequest, "unsupported event type"},
		{"array data", `{"event":"item_added","data":[1,2]}`, http.StatusBadRequest, "JSON object"},
		{"malformed", `{"event":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.post(t, "party-1", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantError == "" {
				return
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(body.Error, tt.wantError) {
				t.Fatalf("error = %q, want it to contain %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestPublishEvent_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	big := `{"event":"item_added","data":{"blob":"` + strings.Repeat("x", 70<<10) + `"}}`

	resp, err := http.Post(env.srv.URL+"/api/v1/inventories/party-1/events", "application/json", bytes.NewBufferString(big))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestStreamRoutesRateLimited(t *testing.T) {
	env := newTestEnv(t, middleware.NewRateLimiter(0.001, 1))

	s := env.openStream(t, "party-1", nil)
	s.next()

	resp, err := http.Get(env.srv.URL + "/api/v1/inventories/party-1/events")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}

	// Non-stream routes are not limited.
	viewers, err := http.Get(env.srv.URL + "/api/v1/inventories/party-1/viewers")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = viewers.Body.Close() }()
	if viewers.StatusCode != http.StatusOK {
		t.Fatalf("viewers status = %d, want 200", viewers.StatusCode)
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.srv.URL + "/api/v1/")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
