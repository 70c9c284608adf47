package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/PartyLedger/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	idempotencyNamespace = "idem"
	maxIdempotencyKeyLen = 256
	maxRememberedBody    = 64 << 10 // 64 KB
)

// storedResponse is what a retried publish gets back.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency makes POST requests that carry an Idempotency-Key replay the
// first successful response for ttl instead of reaching next again, so a
// producer retrying a publish after a timeout does not emit the event twice.
// Keys are scoped to the request path. A nil store disables the middleware.
func Idempotency(store cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if r.Method != http.MethodPost || key == "" || len(key) > maxIdempotencyKeyLen {
				next.ServeHTTP(w, r)
				return
			}
			storeKey := cache.Key(idempotencyNamespace, r.URL.Path+":"+key)

			if prev, ok := lookupResponse(r, store, storeKey); ok {
				if prev.ContentType != "" {
					w.Header().Set("Content-Type", prev.ContentType)
				}
				w.Header().Set(headerReplayed, "true")
				w.WriteHeader(prev.Status)
				_, _ = w.Write(prev.Body)
				return
			}

			tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tee, r)

			// Rejections are not remembered; the producer may fix the
			// request and retry under the same key.
			if tee.status >= http.StatusMultipleChoices || tee.body.Len() > maxRememberedBody {
				return
			}
			data, err := json.Marshal(storedResponse{
				Status:      tee.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        tee.body.Bytes(),
			})
			if err == nil {
				err = store.Set(r.Context(), storeKey, data, ttl)
			}
			if err != nil {
				slog.Warn("idempotency: response not stored", "key", key, "error", err)
			}
		})
	}
}

func lookupResponse(r *http.Request, store cache.Cache, key string) (storedResponse, bool) {
	var prev storedResponse
	data, ok, err := store.Get(r.Context(), key)
	if err != nil || !ok {
		return prev, false
	}
	if err := json.Unmarshal(data, &prev); err != nil || prev.Status == 0 {
		slog.Warn("idempotency: discarding unreadable entry", "key", key)
		return prev, false
	}
	return prev, true
}

// teeWriter passes the response through while keeping a copy of it.
type teeWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (t *teeWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(p []byte) (int, error) {
	t.body.Write(p)
	return t.ResponseWriter.Write(p)
}

func (t *teeWriter) Unwrap() http.ResponseWriter { return t.ResponseWriter }
