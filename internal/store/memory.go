// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/launchgrid/feedrank/internal/models"
)

// Memory is an in-memory Store used by tests and development mode.
// Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	content      map[int64]models.ContentItem
	interactions []models.InteractionEvent
	unique       map[string]struct{} // "<user>:<content>:<type>" for unique types
	seen         map[string]models.SeenRecord
	edges        map[int64]map[int64]struct{} // follower -> followed set
	profiles     map[int64]map[string]float64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		content:  make(map[int64]models.ContentItem),
		unique:   make(map[string]struct{}),
		seen:     make(map[string]models.SeenRecord),
		edges:    make(map[int64]map[int64]struct{}),
		profiles: make(map[int64]map[string]float64),
	}
}

// UpsertContent stores or replaces a content snapshot.
func (m *Memory) UpsertContent(ctx context.Context, item models.ContentItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[item.ID] = item
	return nil
}

// AddEdge records a follow edge. Duplicate calls are no-ops.
func (m *Memory) AddEdge(ctx context.Context, edge models.SocialEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.edges[edge.FollowerID]
	if !ok {
		set = make(map[int64]struct{})
		m.edges[edge.FollowerID] = set
	}
	set[edge.FollowedID] = struct{}{}
	return nil
}

// RecentCandidates implements ContentStore.
func (m *Memory) RecentCandidates(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]models.ContentItem, 0, len(m.content))
	for _, item := range m.content {
		items = append(items, item)
	}
	sortNewestFirst(items)

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// AuthoredSince implements ContentStore.
func (m *Memory) AuthoredSince(ctx context.Context, authorIDs []int64, since time.Time, limit int) ([]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	authors := make(map[int64]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = struct{}{}
	}

	var items []models.ContentItem
	for _, item := range m.content {
		if _, ok := authors[item.AuthorID]; !ok {
			continue
		}
		if item.CreatedAt.Before(since) {
			continue
		}
		items = append(items, item)
	}
	sortNewestFirst(items)

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GetContentBatch implements ContentStore.
func (m *Memory) GetContentBatch(ctx context.Context, ids []int64) (map[int64]models.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]models.ContentItem, len(ids))
	for _, id := range ids {
		if item, ok := m.content[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

// IncrementCounter implements ContentStore.
func (m *Memory) IncrementCounter(ctx context.Context, contentID int64, typ models.InteractionType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.content[contentID]
	if !ok {
		return fmt.Errorf("content %d not found", contentID)
	}

	switch typ {
	case models.InteractionLike:
		item.LikeCount++
	case models.InteractionComment:
		item.CommentCount++
	case models.InteractionShare:
		item.ShareCount++
	case models.InteractionView:
		item.ViewCount++
	case models.InteractionBookmark:
		// Bookmarks are not surfaced as an engagement counter.
	default:
		return fmt.Errorf("unknown interaction type %q", typ)
	}

	m.content[contentID] = item
	return nil
}

// AppendInteraction implements InteractionStore.
func (m *Memory) AppendInteraction(ctx context.Context, ev models.InteractionEvent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Type.Unique() {
		key := uniqueKey(ev.UserID, ev.ContentID, ev.Type)
		if _, exists := m.unique[key]; exists {
			return false, nil
		}
		m.unique[key] = struct{}{}
	}

	m.interactions = append(m.interactions, ev)
	return true, nil
}

// ListInteractions implements InteractionStore.
func (m *Memory) ListInteractions(ctx context.Context, userID, contentID int64) ([]models.InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.InteractionEvent
	for _, ev := range m.interactions {
		if ev.UserID == userID && ev.ContentID == contentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// CountsSince implements InteractionStore.
func (m *Memory) CountsSince(ctx context.Context, since time.Time) (map[int64]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[int64]int64)
	for _, ev := range m.interactions {
		if ev.CreatedAt.Before(since) {
			continue
		}
		counts[ev.ContentID]++
	}
	return counts, nil
}

// MarkSeen implements SeenStore.
func (m *Memory) MarkSeen(ctx context.Context, userID int64, contentIDs []int64, source string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	createdCount := 0
	for _, contentID := range contentIDs {
		key := seenKey(userID, contentID)
		if rec, exists := m.seen[key]; exists {
			rec.LastSeenAt = at
			rec.Source = source
			m.seen[key] = rec
			continue
		}
		m.seen[key] = models.SeenRecord{
			UserID:      userID,
			ContentID:   contentID,
			FirstSeenAt: at,
			LastSeenAt:  at,
			Source:      source,
		}
		createdCount++
	}
	return createdCount, nil
}

// SeenSet implements SeenStore.
func (m *Memory) SeenSet(ctx context.Context, userID int64, contentIDs []int64) (map[int64]models.SeenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]models.SeenRecord)
	for _, contentID := range contentIDs {
		if rec, ok := m.seen[seenKey(userID, contentID)]; ok {
			out[contentID] = rec
		}
	}
	return out, nil
}

// FollowedSet implements SocialGraphStore.
func (m *Memory) FollowedSet(ctx context.Context, followerID int64) (map[int64]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]struct{}, len(m.edges[followerID]))
	for id := range m.edges[followerID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// AddTopicAffinity implements ProfileStore.
func (m *Memory) AddTopicAffinity(ctx context.Context, userID int64, topic string, delta float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[userID]
	if !ok {
		profile = make(map[string]float64)
		m.profiles[userID] = profile
	}
	profile[topic] += delta
	return nil
}

// TopicAffinity implements ProfileStore.
func (m *Memory) TopicAffinity(ctx context.Context, userID int64) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.profiles[userID]))
	for topic, affinity := range m.profiles[userID] {
		out[topic] = affinity
	}
	return out, nil
}

// sortNewestFirst orders items by creation time descending, content ID
// ascending on ties. The same total order the scorer uses for tie-breaks.
func sortNewestFirst(items []models.ContentItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func uniqueKey(userID, contentID int64, typ models.InteractionType) string {
	return fmt.Sprintf("%d:%d:%s", userID, contentID, typ)
}

func seenKey(userID, contentID int64) string {
	return fmt.Sprintf("%d:%d", userID, contentID)
}

var _ Store = (*Memory)(nil)
