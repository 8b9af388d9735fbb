// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package trending computes interaction-velocity rankings over a trailing
// window and caches them per scope.
//
// The cache is derived state: every entry is recomputable from the
// interaction history, so serving a stale list during a failed recompute
// is always safe.
package trending

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/launchgrid/feedrank/internal/config"
	"github.com/launchgrid/feedrank/internal/feed"
	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/metrics"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

// ScopeGlobal ranks across all topics. Per-topic scopes are
// "topic:<name>".
const ScopeGlobal = "global"

const topicScopePrefix = "topic:"

// ParseScope normalizes a query-string scope. Empty input means global.
func ParseScope(s string) (string, error) {
	if s == "" {
		return ScopeGlobal, nil
	}
	if s == ScopeGlobal {
		return s, nil
	}
	if topic := strings.TrimPrefix(s, topicScopePrefix); topic != s && topic != "" {
		return s, nil
	}
	return "", fmt.Errorf("invalid trending scope %q", s)
}

type cached struct {
	entries    []models.TrendingEntry
	computedAt time.Time
}

// Computer owns the trending cache and its recomputation.
type Computer struct {
	interactions store.InteractionStore
	content      store.ContentStore
	cfg          config.TrendingConfig

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cached

	log zerolog.Logger
	now func() time.Time
}

// NewComputer creates a Computer with an empty cache.
func NewComputer(interactions store.InteractionStore, content store.ContentStore, cfg config.TrendingConfig) *Computer {
	return &Computer{
		interactions: interactions,
		content:      content,
		cfg:          cfg,
		cache:        make(map[string]cached),
		log:          logging.WithComponent("trending"),
		now:          time.Now,
	}
}

// SetClock overrides the clock for tests.
func (c *Computer) SetClock(now func() time.Time) {
	c.now = now
}

// GetTrending returns the cached ranking for scope, recomputing on
// expiry. Concurrent misses for the same scope collapse into a single
// recomputation; a failed recompute serves the last known value past its
// TTL rather than failing.
func (c *Computer) GetTrending(ctx context.Context, scope string) ([]models.TrendingEntry, time.Time, error) {
	if entry, ok := c.fresh(scope); ok {
		metrics.TrendingCacheHits.WithLabelValues(scope).Inc()
		return entry.entries, entry.computedAt, nil
	}
	metrics.TrendingCacheMisses.WithLabelValues(scope).Inc()

	result, err, _ := c.group.Do(scope, func() (any, error) {
		// A second freshness check: a late arrival that queued behind the
		// in-flight compute reuses its stored result.
		if entry, ok := c.fresh(scope); ok {
			return entry, nil
		}
		// Detached from the triggering request: an impatient first caller
		// must not poison the result every waiter shares.
		return c.recompute(context.Background(), scope)
	})
	if err != nil {
		if stale, ok := c.last(scope); ok {
			metrics.TrendingStaleServes.WithLabelValues(scope).Inc()
			c.log.Warn().Err(err).Str("scope", scope).Msg("recompute failed, serving stale trending")
			return stale.entries, stale.computedAt, nil
		}
		return nil, time.Time{}, fmt.Errorf("%w: %w", feed.ErrTrendingCompute, err)
	}

	entry := result.(cached)
	return entry.entries, entry.computedAt, nil
}

// Refresh recomputes the global scope. The supervisor runs this
// periodically so interactive requests mostly hit a warm cache; its ctx
// cancels the recompute during shutdown.
func (c *Computer) Refresh(ctx context.Context) error {
	_, err := c.recompute(ctx, ScopeGlobal)
	return err
}

func (c *Computer) fresh(scope string) (cached, bool) {
	entry, ok := c.last(scope)
	if !ok {
		return cached{}, false
	}
	return entry, c.now().Sub(entry.computedAt) < c.cfg.TTL
}

func (c *Computer) last(scope string) (cached, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[scope]
	return entry, ok
}

// recompute scans interactions in the trailing window and ranks content
// by velocity, bounded by the compute timeout under the caller's parent
// context.
func (c *Computer) recompute(parent context.Context, scope string) (cached, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.ComputeTimeout)
	defer cancel()

	metrics.TrendingRecomputes.WithLabelValues(scope).Inc()
	now := c.now()

	counts, err := c.interactions.CountsSince(ctx, now.Add(-c.cfg.Window))
	if err != nil {
		return cached{}, fmt.Errorf("count interactions: %w", err)
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	items, err := c.content.GetContentBatch(ctx, ids)
	if err != nil {
		return cached{}, fmt.Errorf("load content: %w", err)
	}

	topic := strings.TrimPrefix(scope, topicScopePrefix)
	windowHours := c.cfg.Window.Hours()

	entries := make([]models.TrendingEntry, 0, len(counts))
	for id, n := range counts {
		item, ok := items[id]
		if !ok {
			continue // content gone; nothing to rank
		}
		if scope != ScopeGlobal && item.Topic != topic {
			continue
		}
		entries = append(entries, models.TrendingEntry{
			ContentID:          id,
			Topic:              item.Topic,
			VelocityScore:      float64(n) / windowHours,
			WindowInteractions: n,
			ComputedAt:         now,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].VelocityScore != entries[j].VelocityScore {
			return entries[i].VelocityScore > entries[j].VelocityScore
		}
		return entries[i].ContentID < entries[j].ContentID
	})
	if len(entries) > c.cfg.TopN {
		entries = entries[:c.cfg.TopN]
	}

	entry := cached{entries: entries, computedAt: now}
	c.mu.Lock()
	c.cache[scope] = entry
	c.mu.Unlock()
	return entry, nil
}
