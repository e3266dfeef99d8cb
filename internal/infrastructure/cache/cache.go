// Package cache provides the short-TTL key/value store used for hot
// execution contexts and the externalised AI quota counters.
package cache

import (
	"context"
	"time"
)

// Cache is the store contract. Writes are best effort: the engine treats a
// cache miss or a failed write as a fall-through to the durable store.
type Cache interface {
	// Get returns the value for key, or ("", false, nil) on a miss.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment atomically increments the integer at key and returns the
	// new value, initialising to 1 when absent. ttl applies only when the
	// key is created.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
