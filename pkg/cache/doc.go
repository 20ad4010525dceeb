// Package cache provides a per-record catalog cache with Redis backend.
//
// The catalog service is the single most failure-prone upstream of the
// aggregation pipeline (third-party rate limits), so resolved records are
// cached by identifier and consulted before any batch is dispatched. Only
// cache misses are fetched. The cache is strictly an optimization: with a
// nil manager the pipeline produces identical results.
//
// Features:
//
// - Per-record storage with a fixed TTL (records are stale-tolerant snapshots)
// - Pipelined MGET/SET for whole working sets
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient, 15*time.Minute)
//
//	// Look up a whole working set at once
//	entries, err := manager.GetMany(ctx, ids)
//	if err != nil {
//		// Redis unavailable - fall back to fetching everything
//	}
//
//	// Store resolved records
//	if err := manager.SetMany(ctx, payloads); err != nil {
//		// Best effort - a failed write never fails the pipeline
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - shelf_catalog_cache_hits_total{layer="redis"} - Cache hits
//   - shelf_catalog_cache_misses_total - Cache misses
//   - shelf_catalog_cache_size_bytes{layer="redis"} - Cache size
//   - shelf_catalog_cache_errors_total{operation} - Cache operation errors
package cache
