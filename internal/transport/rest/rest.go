// Package rest implements the HTTP executor the client's workflows run on:
// request building, credential headers, JSON bodies, and host failover.
//
// Failover policy: hosts are tried in rotation order; a transport-level
// failure (connection refused, DNS, timeout) advances to the next host, an
// HTTP error status never does — the engine answered, retrying elsewhere
// would not change the outcome.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Kind selects the host pool for a call. Search traffic goes to the
// search-optimized pool, everything else to the write pool.
type Kind int

// Call kinds.
const (
	Read Kind = iota
	Write
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the engine.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quiver: API error %d: %s", e.StatusCode, e.Message)
}

// Config holds transport construction parameters.
type Config struct {
	AppID  string
	APIKey string
	// SearchHosts and WriteHosts override the hosts derived from AppID.
	SearchHosts []string
	WriteHosts  []string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
	// Logger enables per-request debug logging. Nil disables.
	Logger *slog.Logger
}

// Client executes API calls against a host pool.
type Client struct {
	appID  string
	apiKey string
	search *hostPool
	write  *hostPool
	http   *http.Client
	logger *slog.Logger
}

// New creates a transport for the given application.
func New(cfg Config) *Client {
	searchHosts := cfg.SearchHosts
	if len(searchHosts) == 0 {
		searchHosts = defaultHosts(cfg.AppID, "-dsn")
	}
	writeHosts := cfg.WriteHosts
	if len(writeHosts) == 0 {
		writeHosts = defaultHosts(cfg.AppID, "")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		appID:  cfg.AppID,
		apiKey: cfg.APIKey,
		search: newHostPool(searchHosts),
		write:  newHostPool(writeHosts),
		http:   httpClient,
		logger: cfg.Logger,
	}
}

func defaultHosts(appID, primarySuffix string) []string {
	id := strings.ToLower(appID)
	return []string{
		fmt.Sprintf("https://%s%s.quiver.net", id, primarySuffix),
		fmt.Sprintf("https://%s-1.quivernet.com", id),
		fmt.Sprintf("https://%s-2.quivernet.com", id),
		fmt.Sprintf("https://%s-3.quivernet.com", id),
	}
}

// Do executes one API call and returns the raw response payload. Exactly one
// of payload/error is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body any, kind Kind) ([]byte, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	pool := c.write
	if kind == Read {
		pool = c.search
	}

	reqID := ""
	if c.logger != nil {
		reqID = uuid.NewString()
	}

	var lastErr error
	for i := 0; i < pool.len(); i++ {
		host := pool.current()
		payload, retriable, err := c.doOnce(ctx, host, method, path, encoded, reqID)
		if err == nil {
			return payload, nil
		}
		if !retriable {
			return nil, err
		}
		lastErr = err
		pool.advance()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("quiver: all hosts failed: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, host, method, path string, body []byte, reqID string) (payload []byte, retriable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, host+path, reader)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Quiver-Application-Id", c.appID)
	req.Header.Set("X-Quiver-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("request failed",
				"request_id", reqID, "method", method, "host", host,
				"path", path, "error", err)
		}
		return nil, true, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("request completed",
			"request_id", reqID, "method", method, "host", host,
			"path", path, "status", resp.StatusCode, "duration", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var decoded struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload, &decoded) == nil && decoded.Message != "" {
			apiErr.Message = decoded.Message
		}
		return nil, false, apiErr
	}
	return payload, false, nil
}

// hostPool rotates through hosts, remembering the last good position across
// calls so one dead host is not re-tried first on every request.
type hostPool struct {
	hosts []string
	pos   atomic.Uint32
}

func newHostPool(hosts []string) *hostPool {
	return &hostPool{hosts: hosts}
}

func (p *hostPool) len() int { return len(p.hosts) }

func (p *hostPool) current() string {
	return p.hosts[int(p.pos.Load())%len(p.hosts)]
}

func (p *hostPool) advance() {
	p.pos.Add(1)
}
