// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package trending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/launchgrid/feedrank/internal/config"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func testTrendingConfig() config.TrendingConfig {
	return config.TrendingConfig{
		Window:         48 * time.Hour,
		TTL:            300 * time.Second,
		TopN:           20,
		ComputeTimeout: 5 * time.Second,
	}
}

func seedTrending(t *testing.T, m *store.Memory) {
	t.Helper()
	ctx := context.Background()

	topics := map[int64]string{1: "go", 2: "go", 3: "rust"}
	for id, topic := range topics {
		if err := m.UpsertContent(ctx, models.ContentItem{
			ID: id, AuthorID: 100 + id, Topic: topic, CreatedAt: testNow.Add(-3 * time.Hour),
		}); err != nil {
			t.Fatalf("UpsertContent: %v", err)
		}
	}

	// in-window interaction volume: content 2 > content 1 > content 3,
	// plus one pre-window event on content 3 that must not count
	interactions := []struct {
		contentID int64
		count     int
		at        time.Time
	}{
		{1, 3, testNow.Add(-time.Hour)},
		{2, 5, testNow.Add(-2 * time.Hour)},
		{3, 1, testNow.Add(-time.Hour)},
		{3, 10, testNow.Add(-50 * time.Hour)},
	}
	for _, in := range interactions {
		for i := 0; i < in.count; i++ {
			ev := models.InteractionEvent{
				UserID:    int64(1000 + i),
				ContentID: in.contentID,
				Type:      models.InteractionComment,
				CreatedAt: in.at.Add(time.Duration(i) * time.Second),
			}
			if _, err := m.AppendInteraction(ctx, ev); err != nil {
				t.Fatalf("AppendInteraction: %v", err)
			}
		}
	}
}

func TestGetTrendingGlobal(t *testing.T) {
	m := store.NewMemory()
	seedTrending(t, m)

	c := NewComputer(m, m, testTrendingConfig())
	c.SetClock(func() time.Time { return testNow })

	entries, computedAt, err := c.GetTrending(context.Background(), ScopeGlobal)
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	if !computedAt.Equal(testNow) {
		t.Errorf("computedAt = %v, want %v", computedAt, testNow)
	}

	want := []int64{2, 1, 3}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, e := range entries {
		if e.ContentID != want[i] {
			t.Errorf("position %d: got %d, want %d", i, e.ContentID, want[i])
		}
	}

	// pre-window interactions must not inflate velocity
	if entries[2].WindowInteractions != 1 {
		t.Errorf("content 3 window interactions = %d, want 1", entries[2].WindowInteractions)
	}
	if wantVel := 5.0 / 48.0; entries[0].VelocityScore != wantVel {
		t.Errorf("content 2 velocity = %v, want %v", entries[0].VelocityScore, wantVel)
	}
}

func TestGetTrendingTopicScope(t *testing.T) {
	m := store.NewMemory()
	seedTrending(t, m)

	c := NewComputer(m, m, testTrendingConfig())
	c.SetClock(func() time.Time { return testNow })

	entries, _, err := c.GetTrending(context.Background(), "topic:go")
	if err != nil {
		t.Fatalf("GetTrending: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 go items: %+v", len(entries), entries)
	}
	for _, e := range entries {
		if e.Topic != "go" {
			t.Errorf("entry %d has topic %q", e.ContentID, e.Topic)
		}
	}
}

// countingStore counts CountsSince calls and makes each one slow enough
// that concurrent misses pile up behind the first.
type countingStore struct {
	*store.Memory
	calls atomic.Int64
}

func (s *countingStore) CountsSince(ctx context.Context, since time.Time) (map[int64]int64, error) {
	s.calls.Add(1)
	time.Sleep(50 * time.Millisecond)
	return s.Memory.CountsSince(ctx, since)
}

func TestConcurrentMissSingleRecompute(t *testing.T) {
	m := store.NewMemory()
	seedTrending(t, m)
	cs := &countingStore{Memory: m}

	c := NewComputer(cs, m, testTrendingConfig())
	c.SetClock(func() time.Time { return testNow })

	const requests = 10
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := c.GetTrending(context.Background(), ScopeGlobal); err != nil {
				t.Errorf("GetTrending: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := cs.calls.Load(); got != 1 {
		t.Errorf("cache miss under %d concurrent requests ran %d recomputations, want 1", requests, got)
	}
}

// brokenStore fails every scan.
type brokenStore struct {
	*store.Memory
}

func (s brokenStore) CountsSince(ctx context.Context, since time.Time) (map[int64]int64, error) {
	return nil, errors.New("interaction log unavailable")
}

func TestStaleServedOnRecomputeFailure(t *testing.T) {
	m := store.NewMemory()
	seedTrending(t, m)

	now := testNow
	clock := func() time.Time { return now }

	c := NewComputer(m, m, testTrendingConfig())
	c.SetClock(clock)

	first, firstAt, err := c.GetTrending(context.Background(), ScopeGlobal)
	if err != nil {
		t.Fatalf("warm-up GetTrending: %v", err)
	}

	// expire the cache, then break the store
	now = testNow.Add(10 * time.Minute)
	c.interactions = brokenStore{Memory: m}

	entries, computedAt, err := c.GetTrending(context.Background(), ScopeGlobal)
	if err != nil {
		t.Fatalf("stale path returned error: %v", err)
	}
	if !computedAt.Equal(firstAt) {
		t.Errorf("computedAt = %v, want original %v (stale entry)", computedAt, firstAt)
	}
	if len(entries) != len(first) {
		t.Errorf("stale entries differ: got %d, want %d", len(entries), len(first))
	}
}

func TestGetTrendingFailsWithNoCache(t *testing.T) {
	m := store.NewMemory()
	c := NewComputer(brokenStore{Memory: m}, m, testTrendingConfig())
	c.SetClock(func() time.Time { return testNow })

	if _, _, err := c.GetTrending(context.Background(), ScopeGlobal); err == nil {
		t.Fatal("cold cache with broken store returned nil error")
	}
}

func TestRefreshHonorsContext(t *testing.T) {
	m := store.NewMemory()
	seedTrending(t, m)

	c := NewComputer(m, m, testTrendingConfig())
	c.SetClock(func() time.Time { return testNow })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Refresh(ctx); err == nil {
		t.Error("Refresh with cancelled context returned nil error")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	entries, _, err := c.GetTrending(context.Background(), ScopeGlobal)
	if err != nil {
		t.Fatalf("GetTrending after refresh: %v", err)
	}
	if len(entries) == 0 {
		t.Error("refresh left the global cache empty")
	}
}

func TestParseScope(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", ScopeGlobal, false},
		{"global", ScopeGlobal, false},
		{"topic:go", "topic:go", false},
		{"topic:", "", true},
		{"bogus", "", true},
	}
	for _, tc := range cases {
		got, err := ParseScope(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseScope(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseScope(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}
