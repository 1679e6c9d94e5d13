// Package metrics serves the catalog metrics over HTTP. The metrics
// themselves live next to the code that updates them (client, cache,
// ratelimit, pagination, notification) and register with the default
// Prometheus registry through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer is the source Handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{resource, status} (Counter): Requests by resource and HTTP status
//   - catalog_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - catalog_errors_total{class} (Counter): Errors by class (client, rate_limit, server, network)
//
// Pacing Metrics (pkg/ratelimit):
//   - catalog_rate_limit_throttles_total (Counter): Requests delayed by the client-side limiter
//   - catalog_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - catalog_cache_misses_total (Counter): Cache misses
//   - catalog_cache_size_bytes{layer="redis"} (Gauge): Last written entry size in bytes
//   - catalog_304_responses_total (Counter): 304 Not Modified responses
//   - catalog_conditional_requests_total (Counter): Conditional requests sent
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Paging Metrics (pkg/pagination):
//   - catalog_pages_fetched_total{resource} (Counter): Pages fetched, discovery included
//   - catalog_paging_duration_seconds{resource} (Histogram): Duration of complete paging calls
//
// Pipeline Metrics (pkg/notification):
//   - catalog_notifications_consumed_total (Counter): Notifications consumed from the feed
//   - catalog_notifications_reconciled_total{resource} (Counter): Notifications rewritten to a pinned version
//   - catalog_subscriber_errors_total (Counter): Subscriber handler failures
//   - catalog_pipeline_cycles_total (Counter): Completed poll-reconcile-distribute cycles
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Pipeline stalled
//   rate(catalog_pipeline_cycles_total[10m]) == 0
//
//   # Request Error Rate
//   rate(catalog_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # Pages per paging call
//   rate(catalog_pages_fetched_total[5m]) / rate(catalog_paging_duration_seconds_count[5m])
