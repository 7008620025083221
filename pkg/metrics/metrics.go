// Package metrics provides the centralized Prometheus metrics registry for
// the allocation client. All metrics are defined in their respective packages
// (client, cache, ratelimit, bulk) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the allocation client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - alloc_rate_limit_remaining (Gauge): Requests remaining in the upstream rate limit window
//   - alloc_rate_limit_blocks_total (Counter): Requests blocked due to critical budget
//   - alloc_rate_limit_throttles_total (Counter): Requests throttled due to warning budget
//
// Cache Metrics (pkg/cache):
//   - alloc_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - alloc_cache_misses_total (Counter): Cache misses
//   - alloc_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - alloc_304_responses_total (Counter): 304 Not Modified responses
//   - alloc_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - alloc_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - alloc_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - alloc_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - alloc_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - alloc_retries_total{error_class} (Counter): Retry attempts by error class
//   - alloc_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - alloc_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Bulk Workflow Metrics (pkg/bulk):
//   - alloc_bulk_jobs_total{outcome} (Counter): Bulk jobs by outcome (completed, failed, timeout, submit_error)
//   - alloc_bulk_polls_total (Counter): Status polls issued
//   - alloc_fallback_engaged_total (Counter): Refresh cycles that fell back to per-entity fetches
//   - alloc_stale_cycles_discarded_total (Counter): Completed cycles discarded because a newer one started
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(alloc_cache_hits_total[5m])) /
//   (sum(rate(alloc_cache_hits_total[5m])) + sum(rate(alloc_cache_misses_total[5m])))
//
//   # Fallback Rate
//   rate(alloc_fallback_engaged_total[1h])
//
//   # Request Error Rate
//   rate(alloc_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(alloc_request_duration_seconds_bucket[5m]))
