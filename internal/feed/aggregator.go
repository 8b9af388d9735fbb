// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

// ReputationProvider supplies author reputation scores. Reputation lives
// with the user service; this engine only reads it, and treats the lookup
// as optional enrichment: failures degrade to zero reputation, they never
// fail the feed.
type ReputationProvider interface {
	Reputation(ctx context.Context, authorIDs []int64) (map[int64]float64, error)
}

// StaticReputation is a fixed reputation table, used in development mode
// and tests.
type StaticReputation map[int64]float64

// Reputation implements ReputationProvider.
func (r StaticReputation) Reputation(_ context.Context, authorIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(authorIDs))
	for _, id := range authorIDs {
		if v, ok := r[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// Aggregator builds SignalSets for candidate content. All reads are
// batched: one follow-set load, one reputation lookup, one profile read
// per request, never per candidate.
type Aggregator struct {
	graph      store.SocialGraphStore
	profiles   store.ProfileStore
	reputation ReputationProvider
	log        zerolog.Logger
	now        func() time.Time
}

// NewAggregator creates an Aggregator. reputation may be nil, in which
// case every author scores zero reputation.
func NewAggregator(graph store.SocialGraphStore, profiles store.ProfileStore, reputation ReputationProvider) *Aggregator {
	return &Aggregator{
		graph:      graph,
		profiles:   profiles,
		reputation: reputation,
		log:        logging.WithComponent("aggregator"),
		now:        time.Now,
	}
}

// SetClock overrides the clock for tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Aggregate turns candidate snapshots into scoring inputs for the user.
// Optional enrichments (reputation, topic affinity) are swallowed on
// failure and logged; the mandatory follow-set load degrades to an empty
// set with a warning rather than aborting the page.
func (a *Aggregator) Aggregate(ctx context.Context, userID int64, candidates []models.ContentItem) ([]SignalSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	followed, err := a.graph.FollowedSet(ctx, userID)
	if err != nil {
		a.log.Warn().Err(err).Int64("user_id", userID).Msg("follow set unavailable, boosting nothing")
		followed = map[int64]struct{}{}
	}

	authorIDs := make([]int64, 0, len(candidates))
	seenAuthors := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seenAuthors[c.AuthorID]; !ok {
			seenAuthors[c.AuthorID] = struct{}{}
			authorIDs = append(authorIDs, c.AuthorID)
		}
	}

	reputations := a.lookupReputation(ctx, userID, authorIDs)
	affinity := a.lookupAffinity(ctx, userID)

	now := a.now()
	signals := make([]SignalSet, 0, len(candidates))
	for _, c := range candidates {
		_, isFollowed := followed[c.AuthorID]
		signals = append(signals, SignalSet{
			ContentID:            c.ID,
			Likes:                c.LikeCount,
			Comments:             c.CommentCount,
			Shares:               c.ShareCount,
			Views:                c.ViewCount,
			IsFromFollowedAuthor: isFollowed,
			AgeSeconds:           AgeSeconds(c.CreatedAt, now),
			AuthorReputation:     reputations[c.AuthorID],
			TopicAffinity:        affinity[c.Topic],
			CreatedAt:            c.CreatedAt,
		})
	}
	return signals, nil
}

func (a *Aggregator) lookupReputation(ctx context.Context, userID int64, authorIDs []int64) map[int64]float64 {
	if a.reputation == nil || len(authorIDs) == 0 {
		return nil
	}
	reputations, err := a.reputation.Reputation(ctx, authorIDs)
	if err != nil {
		// optional enrichment: zero reputation, keep ranking
		a.log.Warn().Err(err).Int64("user_id", userID).Msg("reputation lookup failed")
		return nil
	}
	return reputations
}

func (a *Aggregator) lookupAffinity(ctx context.Context, userID int64) map[string]float64 {
	affinity, err := a.profiles.TopicAffinity(ctx, userID)
	if err != nil {
		a.log.Warn().Err(err).Int64("user_id", userID).Msg("interest profile unavailable")
		return nil
	}
	return affinity
}
