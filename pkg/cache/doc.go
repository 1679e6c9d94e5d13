// Package cache provides a Redis-backed cache for catalog GET responses with
// ETag and Last-Modified revalidation.
//
// Entries are keyed by resource, id, representation version and the encoded
// query, so every page of a paged read and every reconciliation fetch has
// its own entry. A cached entry is never served blindly: the client sends a
// conditional request and the cache only short-circuits the body when the
// catalog answers 304 Not Modified. Freshness of resource representations
// therefore stays the catalog's decision.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Resource: "persons",
//		Version:  "application/vnd.hedtech.integration.v12.3.0+json",
//		Query:    "criteria=%7B%22lastName%22%3A%22Smith%22%7D",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the catalog
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer="redis"}
//   - catalog_cache_misses_total
//   - catalog_cache_size_bytes{layer="redis"}
//   - catalog_304_responses_total
//   - catalog_conditional_requests_total
//   - catalog_cache_errors_total{operation}
package cache
