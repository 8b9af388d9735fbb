// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

func TestAggregateBuildsSignals(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	created := testNow.Add(-2 * time.Hour)
	if err := m.UpsertContent(ctx, models.ContentItem{
		ID: 1, AuthorID: 101, Topic: "go", CreatedAt: created,
		LikeCount: 5, CommentCount: 2, ShareCount: 1, ViewCount: 300,
	}); err != nil {
		t.Fatalf("UpsertContent: %v", err)
	}
	if err := m.AddEdge(ctx, models.SocialEdge{FollowerID: 7, FollowedID: 101}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := m.AddTopicAffinity(ctx, 7, "go", 3.5); err != nil {
		t.Fatalf("AddTopicAffinity: %v", err)
	}

	agg := NewAggregator(m, m, StaticReputation{101: 80})
	agg.SetClock(func() time.Time { return testNow })

	items, err := m.GetContentBatch(ctx, []int64{1})
	if err != nil {
		t.Fatalf("GetContentBatch: %v", err)
	}
	signals, err := agg.Aggregate(ctx, 7, []models.ContentItem{items[1]})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signal sets, want 1", len(signals))
	}

	sig := signals[0]
	if sig.Likes != 5 || sig.Comments != 2 || sig.Shares != 1 || sig.Views != 300 {
		t.Errorf("counters = %+v", sig)
	}
	if !sig.IsFromFollowedAuthor {
		t.Error("followed author not flagged")
	}
	if sig.AuthorReputation != 80 {
		t.Errorf("reputation = %v, want 80", sig.AuthorReputation)
	}
	if sig.TopicAffinity != 3.5 {
		t.Errorf("affinity = %v, want 3.5", sig.TopicAffinity)
	}
	if want := (2 * time.Hour).Seconds(); sig.AgeSeconds != want {
		t.Errorf("age = %v, want %v", sig.AgeSeconds, want)
	}
}

type downGraph struct{}

func (downGraph) FollowedSet(ctx context.Context, followerID int64) (map[int64]struct{}, error) {
	return nil, errors.New("graph service down")
}

func TestAggregateDegradesWithoutGraph(t *testing.T) {
	m := store.NewMemory()
	agg := NewAggregator(downGraph{}, m, nil)
	agg.SetClock(func() time.Time { return testNow })

	signals, err := agg.Aggregate(context.Background(), 7, []models.ContentItem{
		{ID: 1, AuthorID: 101, CreatedAt: testNow},
	})
	if err != nil {
		t.Fatalf("Aggregate must degrade, not fail: %v", err)
	}
	if signals[0].IsFromFollowedAuthor {
		t.Error("unavailable graph must boost nothing")
	}
}
