// Package metrics exposes Prometheus collectors for the ingredient pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CorrectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clony_corrections_total",
			Help: "Total number of corrected tokens by resolution source",
		},
		[]string{"source"},
	)

	LookupFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clony_lookup_failures_total",
			Help: "Total number of remote ingredient lookups absorbed as failures",
		},
		[]string{"reason"},
	)

	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clony_lookup_duration_seconds",
			Help:    "Duration of remote ingredient lookups in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	LookupCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clony_lookup_cache_results_total",
			Help: "Ingredient lookup cache hits and misses",
		},
		[]string{"result"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clony_analyses_total",
			Help: "Total number of compatibility analyses by badge",
		},
		[]string{"badge"},
	)

	CompatibilityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clony_compatibility_score",
			Help:    "Distribution of compatibility scores",
			Buckets: prometheus.LinearBuckets(60, 5, 9),
		},
	)

	TokensPerAnalysis = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clony_tokens_per_analysis",
			Help:    "Number of segmented tokens per analysis",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clony_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RateLimitedRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clony_rate_limited_requests_total",
			Help: "Total number of HTTP requests rejected by the per-IP limiter",
		},
	)
)
