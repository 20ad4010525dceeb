// Package metrics provides the centralized Prometheus metrics registry for
// the aggregator. All metrics are defined in their respective packages
// (ownership, catalog, cache, ratelimit, aggregate) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the aggregator.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Ownership Metrics (pkg/ownership):
//   - shelf_list_pages_total{status} (Counter): List page fetches by outcome (success, error)
//   - shelf_list_page_duration_seconds (Histogram): List page fetch duration
//
// Catalog Request Metrics (pkg/catalog):
//   - shelf_catalog_requests_total{status} (Counter): Catalog requests by HTTP status
//   - shelf_catalog_request_duration_seconds (Histogram): Catalog request duration
//   - shelf_catalog_errors_total{class} (Counter): Errors by class (client, server, throttle, network)
//
// Catalog Retry Metrics (pkg/catalog):
//   - shelf_catalog_retries_total{error_class} (Counter): Retry attempts by error class
//   - shelf_catalog_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - shelf_catalog_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Batch Metrics (pkg/catalog):
//   - shelf_catalog_batches_total{outcome} (Counter): Batches dispatched by outcome (success, error)
//   - shelf_catalog_records_resolved_total{source} (Counter): Records resolved by source (cache, upstream)
//
// Cache Metrics (pkg/cache):
//   - shelf_catalog_cache_hits_total (Counter): Record cache hits
//   - shelf_catalog_cache_misses_total (Counter): Record cache misses
//   - shelf_catalog_cache_size_bytes (Gauge): Current cache payload size in bytes
//   - shelf_catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Throttle Metrics (pkg/ratelimit):
//   - shelf_throttle_cooldown_seconds (Gauge): Seconds remaining in the current cooldown window
//   - shelf_throttle_blocks_total (Counter): Requests blocked during a cooldown
//   - shelf_throttle_events_total (Counter): Throttle signals observed on catalog responses
//
// Aggregation Metrics (pkg/aggregate):
//   - shelf_aggregate_duration_seconds{operation} (Histogram): Pass duration by operation (page, all)
//   - shelf_aggregate_books_total{outcome} (Counter): Books processed by outcome (merged, skipped)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(shelf_catalog_cache_hits_total[5m])) /
//   (sum(rate(shelf_catalog_cache_hits_total[5m])) + sum(rate(shelf_catalog_cache_misses_total[5m])))
//
//   # Throttle Pressure
//   shelf_throttle_cooldown_seconds > 0
//
//   # Batch Failure Rate
//   rate(shelf_catalog_batches_total{outcome="error"}[5m]) /
//   rate(shelf_catalog_batches_total[5m])
//
//   # P95 Catalog Latency
//   histogram_quantile(0.95, rate(shelf_catalog_request_duration_seconds_bucket[5m]))
//
//   # Share of Books Dropped for Missing Catalog Data
//   rate(shelf_aggregate_books_total{outcome="skipped"}[5m]) /
//   rate(shelf_aggregate_books_total[5m])
