package middleware

import (
	"net/http"

	"golang.org/x/sync/semaphore"
)

// StreamLimiter caps the number of concurrently open viewer streams using a
// weighted semaphore. A nil StreamLimiter admits everything.
type StreamLimiter struct {
	sem *semaphore.Weighted
}

// NewStreamLimiter creates a limiter admitting at most limit open streams.
// A limit below 1 disables the cap and returns nil.
func NewStreamLimiter(limit int) *StreamLimiter {
	if limit < 1 {
		return nil
	}
	return &StreamLimiter{sem: semaphore.NewWeighted(int64(limit))}
}

// Handler holds a slot for the lifetime of the wrapped request and rejects
// new streams with 503 while every slot is busy.
func (l *StreamLimiter) Handler(next http.Handler) http.Handler {
	if l == nil || l.sem == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.sem.TryAcquire(1) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"too many open streams"}`))
			return
		}
		defer l.sem.Release(1)
		next.ServeHTTP(w, r)
	})
}
