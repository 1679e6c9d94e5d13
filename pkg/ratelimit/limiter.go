// Package ratelimit paces outgoing catalog requests with a token bucket so a
// single client never floods the upstream API.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_throttles_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limiter token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Config holds the pacing configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero or negative disables pacing.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed at once (default: 1).
	Burst int
}

// DefaultConfig returns a conservative pacing configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// Limiter gates requests through a token bucket.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter. A non-positive rate yields an unlimited limiter.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Unlimited reports whether the limiter never delays.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Unlimited() {
		return nil
	}

	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter: burst too small")
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	rateLimitThrottlesTotal.Inc()
	l.logger.Debug().
		Dur("wait_duration", delay).
		Msg("Request throttled by rate limiter")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("rate limiter wait: %w", ctx.Err())
	case <-timer.C:
		rateLimitWaitSeconds.Observe(delay.Seconds())
		return nil
	}
}
