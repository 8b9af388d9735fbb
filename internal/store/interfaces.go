// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package store defines the storage surface consumed by the ranking engine
// and provides two implementations: a BadgerDB-backed store for the
// engine-owned state (interactions, seen records, interest profiles,
// engagement counters) and an in-memory store for tests and development.
//
// The interfaces deliberately expose batch operations only where the
// ranking read path needs them; fetch-per-item on the hot path is a bug,
// not a style choice.
package store

import (
	"context"
	"time"

	"github.com/launchgrid/feedrank/internal/models"
)

// ContentStore is the read surface over content snapshots plus the single
// mutation the engine triggers: an atomic counter increment.
type ContentStore interface {
	// RecentCandidates returns up to limit content items ordered by
	// creation time descending.
	RecentCandidates(ctx context.Context, limit int) ([]models.ContentItem, error)

	// AuthoredSince returns content created by any of the given authors
	// after since, newest first, up to limit.
	AuthoredSince(ctx context.Context, authorIDs []int64, since time.Time, limit int) ([]models.ContentItem, error)

	// GetContentBatch returns snapshots for the given IDs. Missing IDs are
	// absent from the result, not an error.
	GetContentBatch(ctx context.Context, ids []int64) (map[int64]models.ContentItem, error)

	// IncrementCounter atomically adds one to the engagement counter for
	// the interaction type. Safe under concurrent writers; never
	// read-modify-write at the caller.
	IncrementCounter(ctx context.Context, contentID int64, typ models.InteractionType) error
}

// InteractionStore persists the typed event log.
type InteractionStore interface {
	// AppendInteraction stores the event. For unique types (like,
	// bookmark) an existing (user, content, type) row makes this an
	// idempotent no-op and created is false.
	AppendInteraction(ctx context.Context, ev models.InteractionEvent) (created bool, err error)

	// ListInteractions returns all events for a (user, content) pair,
	// oldest first.
	ListInteractions(ctx context.Context, userID, contentID int64) ([]models.InteractionEvent, error)

	// CountsSince returns per-content interaction counts for events at or
	// after since. Implementations must bound the scan to the window, not
	// the full history.
	CountsSince(ctx context.Context, since time.Time) (map[int64]int64, error)
}

// SeenStore persists seen-content records.
type SeenStore interface {
	// MarkSeen idempotently marks the content IDs as seen by the user.
	// Returns the number of newly created records; re-marks update
	// LastSeenAt and Source only.
	MarkSeen(ctx context.Context, userID int64, contentIDs []int64, source string, at time.Time) (int, error)

	// SeenSet returns the subset of contentIDs the user has seen.
	SeenSet(ctx context.Context, userID int64, contentIDs []int64) (map[int64]models.SeenRecord, error)
}

// SocialGraphStore is the read surface over follow edges.
type SocialGraphStore interface {
	// FollowedSet returns the set of author IDs the user follows.
	// Loaded once per feed request, never per candidate.
	FollowedSet(ctx context.Context, followerID int64) (map[int64]struct{}, error)
}

// ProfileStore persists per-user topic affinity profiles.
type ProfileStore interface {
	// AddTopicAffinity adds delta to the user's affinity for topic.
	AddTopicAffinity(ctx context.Context, userID int64, topic string, delta float64) error

	// TopicAffinity returns the user's affinity map. Missing users yield
	// an empty map.
	TopicAffinity(ctx context.Context, userID int64) (map[string]float64, error)
}

// Store is the full surface the server wires together.
type Store interface {
	ContentStore
	InteractionStore
	SeenStore
	SocialGraphStore
	ProfileStore
}
