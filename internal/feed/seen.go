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
	"github.com/launchgrid/feedrank/internal/metrics"
	"github.com/launchgrid/feedrank/internal/store"
)

// SeenFilter suppresses or deprioritizes content the user has already
// been shown.
type SeenFilter struct {
	seen    store.SeenStore
	penalty float64
	log     zerolog.Logger
}

// NewSeenFilter creates a SeenFilter with the given deprioritize penalty.
func NewSeenFilter(seen store.SeenStore, penalty float64) *SeenFilter {
	return &SeenFilter{
		seen:    seen,
		penalty: penalty,
		log:     logging.WithComponent("seen_filter"),
	}
}

// Filter applies the seen-content policy to ranked candidates and
// re-sorts. In exclude mode seen items are removed; in deprioritize mode
// their score is multiplied by the penalty. A failed seen lookup degrades
// to "nothing seen" rather than failing the feed.
func (f *SeenFilter) Filter(ctx context.Context, userID int64, ranked []RankedCandidate, mode SeenFilterMode) []RankedCandidate {
	if len(ranked) == 0 {
		return ranked
	}

	ids := make([]int64, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ContentID
	}

	seen, err := f.seen.SeenSet(ctx, userID, ids)
	if err != nil {
		f.log.Warn().Err(err).Int64("user_id", userID).Msg("seen lookup failed, serving unfiltered")
		return ranked
	}
	if len(seen) == 0 {
		return ranked
	}

	out := make([]RankedCandidate, 0, len(ranked))
	for _, c := range ranked {
		if _, wasSeen := seen[c.ContentID]; !wasSeen {
			out = append(out, c)
			continue
		}
		if mode == SeenExclude {
			continue
		}
		c.Score *= f.penalty
		c.Seen = true
		out = append(out, c)
	}

	SortRanked(out)
	return out
}

// MarkSeen idempotently marks content as seen, attributing the records
// to source ("feed_delivery" or "explicit").
func (f *SeenFilter) MarkSeen(ctx context.Context, userID int64, contentIDs []int64, source string) (int, error) {
	n, err := f.seen.MarkSeen(ctx, userID, contentIDs, source, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	metrics.SeenMarksTotal.Add(float64(n))
	return n, nil
}
