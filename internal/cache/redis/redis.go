// Package redis provides a rueidis-backed search response cache for
// deployments where several client processes should share one cache.
package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"
)

const keyPrefix = "quiver:cache:"

// Config holds connection parameters for the shared cache.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Cache implements the client's cache backend on top of Redis. Expiry is
// delegated to the server via SET EX; Clear scans and deletes the key prefix.
type Cache struct {
	client rueidis.Client
}

// New connects to Redis and returns the cache backend.
func New(cfg Config) (*Cache, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{client: client}, nil
}

// Close shuts down the connection.
func (c *Cache) Close() { c.client.Close() }

// Get returns the cached payload, or ok=false on a miss. Lookup errors are
// treated as misses so a degraded cache never fails a search.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	cmd := c.client.B().Get().Key(keyPrefix + key).Build()
	payload, err := c.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Set stores the payload with a server-side TTL. Errors are dropped: caching
// is best-effort.
func (c *Cache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	cmd := c.client.B().Set().Key(keyPrefix + key).Value(rueidis.BinaryString(payload)).Ex(ttl).Build()
	_ = c.client.Do(ctx, cmd).Error()
}

// Clear removes every cache entry via a prefix scan.
func (c *Cache) Clear(ctx context.Context) {
	var cursor uint64
	for {
		cmd := c.client.B().Scan().Cursor(cursor).Match(keyPrefix + "*").Count(256).Build()
		entry, err := c.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return
		}
		if len(entry.Elements) > 0 {
			del := c.client.B().Del().Key(entry.Elements...).Build()
			_ = c.client.Do(ctx, del).Error()
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return
		}
	}
}
