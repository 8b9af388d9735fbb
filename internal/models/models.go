// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package models defines the shared data types of the ranking engine.
//
// ContentItem and SocialEdge are owned by external collaborators and read
// here as snapshots; InteractionEvent and SeenRecord are created by this
// service; TrendingEntry is entirely derived and recomputable.
package models

import (
	"fmt"
	"time"
)

// InteractionType classifies a user-content interaction.
type InteractionType string

const (
	// InteractionView is a content impression. Deduplicated per
	// (viewer, content) within a sliding window.
	InteractionView InteractionType = "view"
	// InteractionLike is unique per (user, content).
	InteractionLike InteractionType = "like"
	// InteractionComment may repeat; every comment counts.
	InteractionComment InteractionType = "comment"
	// InteractionShare may repeat.
	InteractionShare InteractionType = "share"
	// InteractionBookmark is unique per (user, content). Bookmarks do not
	// contribute to engagement counters but do feed interest profiles.
	InteractionBookmark InteractionType = "bookmark"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionLike, InteractionComment, InteractionShare, InteractionBookmark:
		return true
	default:
		return false
	}
}

// Unique reports whether at most one interaction of this type is counted
// per (user, content) pair.
func (t InteractionType) Unique() bool {
	return t == InteractionLike || t == InteractionBookmark
}

// ContentItem is a read-only snapshot of a feed candidate. Identity fields
// are immutable; the engagement counters are owned by the content store and
// mutated only through its atomic increment operation.
type ContentItem struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Topic     string    `json:"topic,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
	ViewCount    int64 `json:"view_count"`
}

// InteractionEvent is a typed event on a (user, content) pair.
type InteractionEvent struct {
	UserID    int64           `json:"user_id"`
	ContentID int64           `json:"content_id"`
	Type      InteractionType `json:"type"`

	// ClientKey identifies the viewer for view deduplication. It is the
	// user ID when authenticated, otherwise the client IP.
	ClientKey string `json:"client_key,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DedupKey returns the view-dedup window key for this event.
func (e InteractionEvent) DedupKey() string {
	key := e.ClientKey
	if key == "" {
		key = fmt.Sprintf("u:%d", e.UserID)
	}
	return fmt.Sprintf("%s:%d", key, e.ContentID)
}

// SocialEdge is a directed follow relationship, unique per ordered pair.
// The ranking engine reads edges as a boost signal and never mutates them.
type SocialEdge struct {
	FollowerID int64     `json:"follower_id"`
	FollowedID int64     `json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// SeenRecord marks that a user has been shown a content item. Re-marking
// updates LastSeenAt and Source only; FirstSeenAt is write-once.
type SeenRecord struct {
	UserID      int64     `json:"user_id"`
	ContentID   int64     `json:"content_id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Source      string    `json:"source,omitempty"`
}

// TrendingEntry is a derived, cached velocity ranking for one content item
// within a scope. Never authoritative; always recomputable from the
// interaction history.
type TrendingEntry struct {
	ContentID          int64     `json:"content_id"`
	Topic              string    `json:"topic,omitempty"`
	VelocityScore      float64   `json:"velocity_score"`
	WindowInteractions int64     `json:"window_interactions"`
	ComputedAt         time.Time `json:"computed_at"`
}
