package quiver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	searchHosts []string
	writeHosts  []string
	httpClient  *http.Client

	poolLimit int
	cacheTTL  time.Duration

	sharedCacheAddrs    []string
	sharedCachePassword string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithHosts overrides the hosts derived from the application ID. search
// receives query traffic, write everything else. Mainly useful for testing
// against a local or fake deployment.
func WithHosts(search, write []string) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchHosts = search
		c.writeHosts = write
	})
}

// WithHTTPClient overrides the underlying HTTP client (default: 30s timeout).
func WithHTTPClient(h *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = h
	})
}

// WithWorkerPoolLimit caps how many asynchronous operations run in parallel.
// Default: 8. Zero or negative means unbounded.
func WithWorkerPoolLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.poolLimit = n
	})
}

// WithSearchCacheTTL sets the search cache entry lifetime. Default: 2
// minutes.
func WithSearchCacheTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheTTL = ttl
	})
}

// WithSharedSearchCache backs the search cache with Redis so several client
// processes share one cache. Without this option the cache is per-process
// in-memory.
func WithSharedSearchCache(addrs []string, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sharedCacheAddrs = addrs
		c.sharedCachePassword = password
	})
}

// WithLogger enables structured logging for client operations and transport
// requests. Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts, durations,
// cache hit rate) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
