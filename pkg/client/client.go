// Package client provides the catalog HTTP client: the resource fetcher used
// by the pagination engine and the reconciler, and the change-notification
// feed client. Requests are paced, optionally cached in redis, and never
// retried.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/ratelimit"
	"github.com/Sternrassler/catalog-client/pkg/resource"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Prometheus metrics for catalog client operations.
var (
	catalogRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_requests_total",
		Help: "Total catalog requests by resource and status",
	}, []string{"resource", "status"})

	catalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_request_duration_seconds",
		Help:    "Catalog request duration in seconds by resource",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	catalogErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_errors_total",
		Help: "Total catalog errors by class",
	}, []string{"class"})
)

// Client talks to one catalog API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the catalog root, e.g. "https://integrate.example.com". Required.
	BaseURL string

	// UserAgent header. Required.
	UserAgent string

	// TokenSource supplies bearer tokens. Token acquisition itself is the
	// embedding application's concern; nil sends unauthenticated requests.
	TokenSource oauth2.TokenSource

	// Redis enables the response cache when set.
	Redis *redis.Client

	// RateLimit is the sustained requests per second (0 disables pacing).
	RateLimit float64
	// RateBurst is the burst size for pacing.
	RateBurst int

	// Timeout bounds each HTTP round trip.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		RateLimit: 10,
		RateBurst: 5,
		Timeout:   30 * time.Second,
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentClient)

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
		}, logger),
		config: cfg,
		logger: logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// Get fetches one catalog resource collection or record. Any non-2xx
// status is returned as a *TransportError carrying the response body.
func (c *Client) Get(ctx context.Context, r Request) (*Response, error) {
	if strings.TrimSpace(r.Resource) == "" {
		return nil, fmt.Errorf("resource name is required")
	}

	version := resource.NormalizeVersion(r.Version)
	if version == "" {
		version = resource.DefaultVersion
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(r), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", version)

	key := cache.CacheKey{
		Resource: r.Resource,
		ID:       r.ID,
		Version:  version,
		Query:    r.Query,
	}

	resp, err := c.do(req, r.Resource, &key)
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

// resourceURL builds BaseURL/api/{resource}[/{id}][?query].
func (c *Client) resourceURL(r Request) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/api/")
	b.WriteString(url.PathEscape(r.Resource))
	if r.ID != "" {
		b.WriteString("/")
		b.WriteString(url.PathEscape(r.ID))
	}
	if r.Query != "" {
		b.WriteString("?")
		b.WriteString(r.Query)
	}
	return b.String()
}

// do performs a request with pacing, optional caching and auth. A nil key
// bypasses the cache.
func (c *Client) do(req *http.Request, label string, key *cache.CacheKey) (*http.Response, error) {
	ctx := req.Context()

	startTime := time.Now()
	defer func() {
		catalogRequestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Pace
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Class: ErrorClassNetwork, Message: "rate limiter wait", Err: err}
	}

	// Step 2: Check Cache
	var cachedEntry *cache.CacheEntry
	if c.cache != nil && key != nil {
		entry, err := c.cache.Get(ctx, *key)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("resource", label).Msg("Cache get error")
		}
		cachedEntry = entry
	}

	// Step 3: Conditional request on cache hit
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("resource", label).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: Headers
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if c.config.TokenSource != nil {
		tok, err := c.config.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("acquire token: %w", err)
		}
		tok.SetAuthHeader(req)
	}

	c.logger.Debug().
		Str("resource", label).
		Str("url", req.URL.String()).
		Str("request_id", requestID).
		Msg("Executing catalog request")

	// Step 5: Execute
	resp, err := c.httpClient.Do(req)
	if err != nil {
		catalogErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		catalogRequestsTotal.WithLabelValues(label, "network_error").Inc()
		c.logger.Error().Err(err).Str("resource", label).Str("request_id", requestID).Msg("HTTP request failed")
		return nil, &TransportError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}

	catalogRequestsTotal.WithLabelValues(label, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	// Step 6: 304 Not Modified is answered from cache
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("resource", label).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, *key, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 7: Update cache on success
	if resp.StatusCode == http.StatusOK && c.cache != nil && key != nil {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, *key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		catalogErrorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("resource", label).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("request_id", requestID).
			Msg("Catalog request error")
	}

	return resp, nil
}

// readResponse drains and closes the body and turns non-2xx statuses into
// a *TransportError.
func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the response cache, nil when caching is disabled.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}
