// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package metrics provides Prometheus instrumentation for Feedrank:
// feed assembly latency, interaction write paths, trending cache
// efficiency, and storage fallbacks.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed Assembly Metrics
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_requests_total",
			Help: "Total number of feed requests",
		},
		[]string{"mode", "status"},
	)

	FeedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_request_duration_seconds",
			Help:    "Feed assembly duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	FeedFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_fallbacks_total",
			Help: "Total number of recency-fallback feeds served after storage failures",
		},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_scoring_duration_seconds",
			Help:    "Duration of the score-and-sort phase in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	SignalDefaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_signal_defaults_total",
			Help: "Total number of candidates whose signals defaulted to zero after a lookup failure",
		},
	)

	// Interaction Recorder Metrics
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_recorded_total",
			Help: "Total number of interaction events recorded",
		},
		[]string{"type"},
	)

	InteractionsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interactions_suppressed_total",
			Help: "Total number of idempotent no-op interaction submissions",
		},
		[]string{"type", "reason"}, // "unique", "window"
	)

	CounterIncrementErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interaction_counter_increment_errors_total",
			Help: "Total number of failed engagement counter increments",
		},
	)

	ProfileUpdatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interest_profile_updates_dropped_total",
			Help: "Total number of interest profile updates dropped due to a full queue",
		},
	)

	// Trending Cache Metrics
	TrendingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_cache_hits_total",
			Help: "Total number of trending cache hits",
		},
		[]string{"scope"},
	)

	TrendingCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_cache_misses_total",
			Help: "Total number of trending cache misses",
		},
		[]string{"scope"},
	)

	TrendingRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_recomputes_total",
			Help: "Total number of trending recomputations executed",
		},
		[]string{"scope"},
	)

	TrendingStaleServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_stale_serves_total",
			Help: "Total number of trending responses served past TTL after a recompute failure",
		},
		[]string{"scope"},
	)

	// Seen-Content Metrics
	SeenMarksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seen_marks_total",
			Help: "Total number of content items newly marked as seen",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records an API request with its status code and duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFeedRequest records a completed feed assembly.
func RecordFeedRequest(mode, status string, duration time.Duration) {
	FeedRequestsTotal.WithLabelValues(mode, status).Inc()
	FeedRequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
