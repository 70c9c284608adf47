// Package cache defines the port for the in-process byte cache that backs
// encoded SSE frames and remembered publish responses.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys. Implementations may
// drop or delay writes, so callers treat a miss as "compute it again".
type Cache interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A zero ttl keeps it until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key namespaces id so that several users can share one Cache.
func Key(namespace, id string) string {
	return namespace + ":" + id
}
