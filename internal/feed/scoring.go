// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package feed

import (
	"math"
	"sort"
	"time"

	"github.com/launchgrid/feedrank/internal/config"
)

// Scorer computes ranking scores from signal sets. Score is a pure
// function of the SignalSet and the configured weights: no clock reads,
// no store access, no hidden state. Age is an input, not something the
// scorer observes.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer creates a Scorer with the given weight configuration.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the ranking score for one candidate under the given mode.
//
// Hot mode:
//
//	engagement = w_like*ln(1+likes) + w_comment*ln(1+comments)*2 +
//	             w_share*ln(1+shares)*3 + w_view*ln(1+views)*0.01
//	decay      = 1 / (1 + age_hours/half_life_hours)
//	boost      = followed ? FollowedBoost : 1.0
//	score      = (engagement + reputation + affinity) * decay * boost
//
// New mode orders by creation time only; top mode is the hot formula
// without the decay term. Log dampening keeps a single viral counter from
// drowning every other signal.
func (s *Scorer) Score(sig SignalSet, mode Mode) float64 {
	switch mode {
	case ModeNew:
		// Monotone in creation time; the pipeline's CreatedAt tie-break
		// supplies sub-second ordering.
		return -s.ageHours(sig)
	case ModeTop:
		return s.base(sig) * s.boost(sig)
	default:
		return s.base(sig) * s.decay(sig) * s.boost(sig)
	}
}

func (s *Scorer) base(sig SignalSet) float64 {
	engagement := s.cfg.LikeWeight*math.Log1p(nonNegative(sig.Likes)) +
		s.cfg.CommentWeight*math.Log1p(nonNegative(sig.Comments))*2 +
		s.cfg.ShareWeight*math.Log1p(nonNegative(sig.Shares))*3 +
		s.cfg.ViewWeight*math.Log1p(nonNegative(sig.Views))*0.01

	reputation := clamp(sig.AuthorReputation, 0, s.cfg.ReputationCap) * s.cfg.ReputationWeight
	affinity := math.Max(sig.TopicAffinity, 0) * s.cfg.AffinityWeight

	return engagement + reputation + affinity
}

func (s *Scorer) decay(sig SignalSet) float64 {
	return 1 / (1 + s.ageHours(sig)/s.cfg.HalfLifeHours)
}

func (s *Scorer) boost(sig SignalSet) float64 {
	if sig.IsFromFollowedAuthor {
		return s.cfg.FollowedBoost
	}
	return 1.0
}

// ageHours clamps negative ages (clock skew) to zero so skewed content
// never gets a decay factor above 1.
func (s *Scorer) ageHours(sig SignalSet) float64 {
	if sig.AgeSeconds < 0 {
		return 0
	}
	return sig.AgeSeconds / 3600
}

// SeenPenalty returns the configured multiplier applied to seen items in
// deprioritize mode.
func (s *Scorer) SeenPenalty() float64 {
	return s.cfg.SeenPenalty
}

// Rank scores every signal set and returns candidates in final order:
// score descending, then creation time descending, then content ID
// ascending. The tie-break makes the ordering total, which pagination
// depends on.
func (s *Scorer) Rank(signals []SignalSet, mode Mode) []RankedCandidate {
	ranked := make([]RankedCandidate, len(signals))
	for i, sig := range signals {
		ranked[i] = RankedCandidate{
			ContentID: sig.ContentID,
			Score:     s.Score(sig, mode),
			CreatedAt: sig.CreatedAt,
		}
	}
	SortRanked(ranked)
	return ranked
}

// SortRanked sorts in place by score desc, CreatedAt desc, ContentID asc.
func SortRanked(ranked []RankedCandidate) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
		}
		return ranked[i].ContentID < ranked[j].ContentID
	})
}

// AgeSeconds computes the age input for a candidate at the given instant.
func AgeSeconds(createdAt, now time.Time) float64 {
	return now.Sub(createdAt).Seconds()
}

func nonNegative(v int64) float64 {
	if v < 0 {
		return 0
	}
	return float64(v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
