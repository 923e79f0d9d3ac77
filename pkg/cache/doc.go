// Package cache keeps the fetched API description in Redis between runs.
//
// The description document is large and changes rarely. Caching it lets a
// run skip the download when the cached copy is still fresh and revalidate
// it with a conditional request (If-None-Match / If-Modified-Since) when it
// is stale. A 304 Not Modified answer refreshes the entry's freshness window
// without transferring the body again.
//
// Entries are retained in Redis for longer than they are fresh, so a stale
// entry is still available for revalidation:
//
//	manager := cache.NewManager(redisClient, 7*24*time.Hour)
//	key := cache.Key{Namespace: "openapi", URL: descriptionURL}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case err == cache.ErrCacheMiss:
//		// download
//	case entry.IsExpired():
//		cache.AddConditionalHeaders(req, entry)
//	default:
//		// use entry.Data
//	}
//
// # Metrics
//
//   - coda_cache_hits_total{state="fresh|stale"}
//   - coda_cache_misses_total
//   - coda_cache_revalidations_total
//   - coda_cache_errors_total{operation}
//
// A run works without Redis; the cache is an optimisation only.
package cache
