// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package config loads and validates Feedrank configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//   - Environment variables (FEEDRANK_ prefix, "__" separates sections)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// Every ranking tunable (scoring weights, half-life, trending TTL, view
// dedup window, oversampling factor) is externally configurable so the
// constants can be re-tuned without a code change.
package config

import (
	"time"
)

// Config is the root configuration for the Feedrank server.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Store        StoreConfig        `koanf:"store"`
	Scoring      ScoringConfig      `koanf:"scoring"`
	Feed         FeedConfig         `koanf:"feed"`
	Interactions InteractionsConfig `koanf:"interactions"`
	Trending     TrendingConfig     `koanf:"trending"`
	Security     SecurityConfig     `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig holds storage settings for the engine-owned state.
type StoreConfig struct {
	// Backend selects the store implementation: badger or memory.
	Backend string `koanf:"backend" validate:"oneof=badger memory"`

	// Path is the BadgerDB data directory.
	Path string `koanf:"path"`

	// GCInterval is how often the BadgerDB value log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// ScoringConfig holds the weighted-scoring constants. The hot score is
//
//	(engagement + reputation) * recency_decay * graph_boost
//
// with natural-log dampening on each counter.
type ScoringConfig struct {
	LikeWeight       float64 `koanf:"like_weight" validate:"min=0"`
	CommentWeight    float64 `koanf:"comment_weight" validate:"min=0"`
	ShareWeight      float64 `koanf:"share_weight" validate:"min=0"`
	ViewWeight       float64 `koanf:"view_weight" validate:"min=0"`
	ReputationWeight float64 `koanf:"reputation_weight" validate:"min=0"`
	AffinityWeight   float64 `koanf:"affinity_weight" validate:"min=0"`

	// HalfLifeHours controls recency decay: score halves after roughly
	// this many hours for otherwise identical content.
	HalfLifeHours float64 `koanf:"half_life_hours" validate:"gt=0"`

	// FollowedBoost is the multiplicative bonus for followed authors.
	FollowedBoost float64 `koanf:"followed_boost" validate:"gte=1"`

	// ReputationCap clamps the author reputation input.
	ReputationCap float64 `koanf:"reputation_cap" validate:"min=0"`

	// SeenPenalty multiplies the score of already-seen items in
	// deprioritize mode.
	SeenPenalty float64 `koanf:"seen_penalty" validate:"gt=0,lte=1"`
}

// FeedConfig holds feed assembly settings.
type FeedConfig struct {
	DefaultPageSize int `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int `koanf:"max_page_size" validate:"min=1"`

	// OversampleFactor multiplies the page size to bound the
	// followed-author candidate batch merged into the recency pool.
	OversampleFactor int `koanf:"oversample_factor" validate:"min=1"`

	// MaxCandidates bounds a single candidate collection.
	MaxCandidates int `koanf:"max_candidates" validate:"min=1"`

	// FollowedLookback is how far back followed-author content is pulled
	// into the candidate pool beyond the global recency window.
	FollowedLookback time.Duration `koanf:"followed_lookback" validate:"min=1ms"`

	// FetchTimeout is the deadline for a single storage batch fetch.
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"min=1ms"`
}

// InteractionsConfig holds interaction recorder settings.
type InteractionsConfig struct {
	// ViewDedupWindow is the sliding window within which repeat views
	// from the same viewer are dropped.
	ViewDedupWindow time.Duration `koanf:"view_dedup_window" validate:"min=1s"`

	// ViewDedupMaxKeys bounds the in-memory dedup set. 0 = unlimited.
	ViewDedupMaxKeys int `koanf:"view_dedup_max_keys" validate:"min=0"`

	// ProfileQueueSize is the buffer for best-effort interest profile
	// updates; full-queue updates are dropped, never block the caller.
	ProfileQueueSize int `koanf:"profile_queue_size" validate:"min=1"`

	// ProfileRatePerSecond throttles profile writes to the store.
	ProfileRatePerSecond float64 `koanf:"profile_rate_per_second" validate:"gt=0"`
}

// TrendingConfig holds trending cache settings.
type TrendingConfig struct {
	// Window is the trailing interaction window feeding velocity.
	Window time.Duration `koanf:"window" validate:"min=1m"`

	// TTL is the cache lifetime of a computed trending list.
	TTL time.Duration `koanf:"ttl" validate:"min=1s"`

	// TopN is the number of entries kept per scope.
	TopN int `koanf:"top_n" validate:"min=1"`

	// ComputeTimeout bounds a single recomputation.
	ComputeTimeout time.Duration `koanf:"compute_timeout" validate:"min=1ms"`
}

// SecurityConfig holds the HTTP hardening settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8440,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Backend:    "badger",
			Path:       "/data/feedrank",
			GCInterval: 10 * time.Minute,
		},
		Scoring: ScoringConfig{
			LikeWeight:       1.0,
			CommentWeight:    1.0,
			ShareWeight:      1.0,
			ViewWeight:       1.0,
			ReputationWeight: 0.1,
			AffinityWeight:   0.5,
			HalfLifeHours:    24,
			FollowedBoost:    1.5,
			ReputationCap:    100,
			SeenPenalty:      0.3,
		},
		Feed: FeedConfig{
			DefaultPageSize:  20,
			MaxPageSize:      100,
			OversampleFactor: 3,
			MaxCandidates:    1000,
			FollowedLookback: 72 * time.Hour,
			FetchTimeout:     2 * time.Second,
		},
		Interactions: InteractionsConfig{
			ViewDedupWindow:      time.Hour,
			ViewDedupMaxKeys:     100_000,
			ProfileQueueSize:     1024,
			ProfileRatePerSecond: 50,
		},
		Trending: TrendingConfig{
			Window:         48 * time.Hour,
			TTL:            300 * time.Second,
			TopN:           20,
			ComputeTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
	}
}
