package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coda_cache_hits_total",
			Help: "Total number of description cache hits",
		},
		[]string{"state"}, // "fresh", "stale"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coda_cache_misses_total",
			Help: "Total number of description cache misses",
		},
	)

	// Revalidations tracks 304 Not Modified answers to conditional requests
	Revalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coda_cache_revalidations_total",
			Help: "Total number of stale entries revalidated with 304 Not Modified",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coda_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
