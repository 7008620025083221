// Package cache provides allocation API response caching with a Redis backend.
//
// The cache manager implements HTTP-compliant caching with the following features:
//
// - Respect of server Expires headers with automatic TTL management
// - ETag support for conditional requests (If-None-Match)
// - Last-Modified support (If-Modified-Since)
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
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.Key{
//		Endpoint: "/v1/allocations/4711",
//		QueryParams: url.Values{"start_period": []string{"2025-01"}},
//		EntityID: 4711,
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - fetch from the allocation API
//	}
//
// # HTTP Response Caching
//
//	// Convert HTTP response to cache entry
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	// Store in cache
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	// Check if we should make a conditional request
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// The server returns 304 if the data is unchanged
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - alloc_cache_hits_total{layer="redis"} - Cache hits
//   - alloc_cache_misses_total - Cache misses
//   - alloc_cache_size_bytes{layer="redis"} - Cache size
//   - alloc_304_responses_total - Conditional request successes
//   - alloc_conditional_requests_total - Conditional requests sent
//   - alloc_cache_errors_total{operation} - Cache operation errors
//
// Caching matters most on the fallback path, where one report can fan out into
// hundreds of per-entity GETs against data that changes at planning cadence.
package cache
