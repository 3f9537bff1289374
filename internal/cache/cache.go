// Package cache defines the search response cache contract and its in-memory
// default backend.
package cache

import (
	"context"
	"time"
)

// Backend stores serialized search responses keyed by the exact request
// (path + encoded body). Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the cached payload for key, or ok=false on a miss. Expired
	// entries count as misses.
	Get(ctx context.Context, key string) (payload []byte, ok bool)
	// Set stores payload under key for the given TTL.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
	// Clear drops every entry.
	Clear(ctx context.Context)
}
