// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package cache provides in-memory time-windowed primitives used by the
// interaction write path.
package cache

import (
	"sync"
	"time"
)

// DedupWindow suppresses repeated events for the same key within a sliding
// window. The window is anchored on the last admitted event, not the last
// attempt: a stream of suppressed repeats does not extend suppression.
//
// Complexity:
//   - Allow: O(1)
//   - Prune: O(n) over tracked keys
//   - Memory: O(keys admitted within one window)
type DedupWindow struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	entries map[string]time.Time // key -> last admitted time

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// NewDedupWindow creates a dedup window. maxKeys bounds memory; 0 means
// unlimited. When the bound is hit, expired entries are swept first and a
// random entry is evicted only if the sweep freed nothing.
func NewDedupWindow(window time.Duration, maxKeys int) *DedupWindow {
	if window <= 0 {
		window = time.Hour
	}
	return &DedupWindow{
		window:  window,
		maxKeys: maxKeys,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Allow reports whether an event for key should be admitted. An admitted
// event starts (or restarts) the suppression window for that key.
func (d *DedupWindow) Allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.entries[key]; ok && now.Sub(last) < d.window {
		return false
	}

	if d.maxKeys > 0 && len(d.entries) >= d.maxKeys {
		if d.pruneLocked(now) == 0 {
			d.evictOneLocked()
		}
	}

	d.entries[key] = now
	return true
}

// Forget drops the suppression entry for key, so the next event for it is
// admitted again. Callers use it to roll back an admission whose downstream
// write failed.
func (d *DedupWindow) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
}

// Prune removes entries whose window has elapsed and returns the number
// removed. Intended to be called periodically by a maintenance loop.
func (d *DedupWindow) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pruneLocked(d.now())
}

// Len returns the number of tracked keys.
func (d *DedupWindow) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// SetClock replaces the clock source. For tests only.
func (d *DedupWindow) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// pruneLocked removes expired entries. Must be called with mu held.
func (d *DedupWindow) pruneLocked(now time.Time) int {
	removed := 0
	for key, last := range d.entries {
		if now.Sub(last) >= d.window {
			delete(d.entries, key)
			removed++
		}
	}
	return removed
}

// evictOneLocked removes an arbitrary entry. Must be called with mu held.
func (d *DedupWindow) evictOneLocked() {
	for key := range d.entries {
		delete(d.entries, key)
		return
	}
}
