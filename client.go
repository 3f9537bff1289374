package quiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/quiverhq/quiver-go/internal/async"
	"github.com/quiverhq/quiver-go/internal/cache"
	cacheredis "github.com/quiverhq/quiver-go/internal/cache/redis"
	"github.com/quiverhq/quiver-go/internal/domain"
	domsearch "github.com/quiverhq/quiver-go/internal/domain/search"
	"github.com/quiverhq/quiver-go/internal/transport/rest"
)

const (
	defaultPoolLimit = 8
	defaultCacheTTL  = 2 * time.Minute
)

// executor is the transport boundary: one call, one payload or one error,
// host failover handled inside.
type executor interface {
	Do(ctx context.Context, method, path string, body any, kind rest.Kind) ([]byte, error)
}

// Client is the quiver API entry point for one application.
type Client struct {
	exec executor
	pool *async.Pool
	obs  *observer

	cacheMu    sync.Mutex
	cacheOn    bool
	cacheTTL   time.Duration
	cache      cache.Backend
	closeCache func()
}

// New creates a client for the given application. The search cache starts
// disabled; see EnableSearchCache.
func New(appID, apiKey string, opts ...Option) (*Client, error) {
	if appID == "" {
		return nil, errors.New("quiver: application ID required")
	}
	if apiKey == "" {
		return nil, errors.New("quiver: API key required")
	}

	cfg := &clientConfig{
		poolLimit: defaultPoolLimit,
		cacheTTL:  defaultCacheTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var backend cache.Backend = cache.NewMemory()
	var closeCache func()
	if len(cfg.sharedCacheAddrs) > 0 {
		shared, err := cacheredis.New(cacheredis.Config{
			Addrs:    cfg.sharedCacheAddrs,
			Password: cfg.sharedCachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("quiver: connect shared cache: %w", err)
		}
		backend = shared
		closeCache = shared.Close
	}

	return &Client{
		exec: rest.New(rest.Config{
			AppID:       appID,
			APIKey:      apiKey,
			SearchHosts: cfg.searchHosts,
			WriteHosts:  cfg.writeHosts,
			HTTPClient:  cfg.httpClient,
			Logger:      cfg.logger,
		}),
		pool:       async.NewPool(cfg.poolLimit),
		obs:        obs,
		cacheTTL:   cfg.cacheTTL,
		cache:      backend,
		closeCache: closeCache,
	}, nil
}

// Close waits for in-flight asynchronous operations and releases resources.
func (c *Client) Close() {
	c.pool.Drain()
	if c.closeCache != nil {
		c.closeCache()
	}
}

// Index returns a handle scoped to one index.
func (c *Client) Index(name string) *Index {
	return newIndex(c, name)
}

// IndexedQuery pairs a query with the index it targets, for MultipleQueries.
type IndexedQuery struct {
	IndexName string
	Query     *Query
}

// MultipleQueries runs several queries as one batched request. Results come
// back in query order.
func (c *Client) MultipleQueries(ctx context.Context, queries []IndexedQuery) (results []Response, err error) {
	start := time.Now()
	defer func() { c.obs.observe("multiple_queries", start, err) }()

	requests := make([]domsearch.Request, 0, len(queries))
	for _, q := range queries {
		requests = append(requests, domsearch.Request{
			IndexName: q.IndexName,
			Params:    q.Query.Clone().Encode(),
		})
	}
	multi, err := c.multipleQueries(ctx, requests)
	if err != nil {
		return nil, err
	}
	if multi.Results == nil {
		return nil, domain.ErrNoResults
	}
	return multi.Results, nil
}

// multipleQueries issues the raw batch call. It is the engine boundary the
// disjunctive fan-out runs on.
func (c *Client) multipleQueries(ctx context.Context, requests []domsearch.Request) (domsearch.MultiResponse, error) {
	body := map[string]any{"requests": requests}
	payload, err := c.searchCall(ctx, "/1/indexes/*/queries", body)
	if err != nil {
		return domsearch.MultiResponse{}, err
	}
	var multi domsearch.MultiResponse
	if err := json.Unmarshal(payload, &multi); err != nil {
		return domsearch.MultiResponse{}, fmt.Errorf("decode multi-query response: %w", err)
	}
	return multi, nil
}

// searchCall executes a search-type POST, consulting the response cache when
// enabled. The cache key is the exact request: path plus encoded body.
func (c *Client) searchCall(ctx context.Context, path string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	key := path + string(encoded)

	c.cacheMu.Lock()
	enabled, backend, ttl := c.cacheOn, c.cache, c.cacheTTL
	c.cacheMu.Unlock()

	if enabled {
		if payload, ok := backend.Get(ctx, key); ok {
			c.obs.cacheLookup(true)
			return payload, nil
		}
		c.obs.cacheLookup(false)
	}

	payload, err := c.exec.Do(ctx, http.MethodPost, path, body, rest.Read)
	if err != nil {
		return nil, err
	}
	if enabled {
		backend.Set(ctx, key, payload, ttl)
	}
	return payload, nil
}

// EnableSearchCache turns on caching of search responses. Entries live for
// the configured TTL (default 2 minutes) and are evicted lazily on lookup.
func (c *Client) EnableSearchCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cacheOn = true
}

// DisableSearchCache stops caching and drops every stored entry.
func (c *Client) DisableSearchCache() {
	c.cacheMu.Lock()
	backend := c.cache
	c.cacheOn = false
	c.cacheMu.Unlock()
	backend.Clear(context.Background())
}

// ClearSearchCache drops every stored entry but leaves caching active.
func (c *Client) ClearSearchCache(ctx context.Context) {
	c.cacheMu.Lock()
	backend := c.cache
	c.cacheMu.Unlock()
	backend.Clear(ctx)
}
