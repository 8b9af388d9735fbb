// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package feed implements the personalized ranking pipeline: signal
// aggregation, weighted scoring, seen-content filtering, and paginated
// feed assembly.
//
// A feed request runs as a short sequential chain over batch reads;
// nothing in this package blocks on another user's request, and the only
// shared mutable state the pipeline touches lives behind the store
// interfaces.
package feed

import (
	"time"
)

// Mode selects the ranking formula.
type Mode string

const (
	// ModeHot is the full personalized formula: log-dampened engagement
	// plus reputation, decayed by age, boosted for followed authors.
	ModeHot Mode = "hot"
	// ModeNew orders by creation time only.
	ModeNew Mode = "new"
	// ModeTop is raw engagement without recency decay.
	ModeTop Mode = "top"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeHot || m == ModeNew || m == ModeTop
}

// ParseMode maps a query-string value to a Mode, defaulting empty input
// to ModeHot.
func ParseMode(s string) (Mode, bool) {
	if s == "" {
		return ModeHot, true
	}
	m := Mode(s)
	return m, m.Valid()
}

// SeenFilterMode selects how the seen-content filter treats candidates
// the user has already been shown.
type SeenFilterMode string

const (
	// SeenExclude removes seen candidates outright.
	SeenExclude SeenFilterMode = "exclude"
	// SeenDeprioritize keeps seen candidates but multiplies their score
	// by a penalty so fresh content surfaces first. This is the default:
	// a user who has exhausted fresh content still gets a feed.
	SeenDeprioritize SeenFilterMode = "deprioritize"
)

// SignalSet is the full input to the scoring function for one candidate.
// It is a plain value: Score must stay a pure function of it.
type SignalSet struct {
	ContentID            int64
	Likes                int64
	Comments             int64
	Shares               int64
	Views                int64
	IsFromFollowedAuthor bool
	AgeSeconds           float64
	AuthorReputation     float64
	TopicAffinity        float64
	CreatedAt            time.Time
}

// RankedCandidate pairs a candidate with its computed score. CreatedAt
// and ContentID break score ties, which keeps the ordering total.
type RankedCandidate struct {
	ContentID int64
	Score     float64
	CreatedAt time.Time
	Seen      bool
}

// Source labels where a feed page came from, surfaced in the response so
// degraded results are distinguishable from ranked ones.
type Source string

const (
	// SourceRanked is the normal scored pipeline.
	SourceRanked Source = "ranked"
	// SourceFallbackRecency is the pure recency ordering served when
	// scoring inputs could not be fetched in time.
	SourceFallbackRecency Source = "fallback_recency"
	// SourceEmpty marks a page that is empty because candidate
	// collection itself failed, as opposed to there being no content.
	SourceEmpty Source = "unavailable"
)

// Page is one assembled feed page.
type Page struct {
	Results  []int64
	Page     int
	PageSize int
	HasNext  bool
	Source   Source
}

// Request is a single feed request after parameter normalization.
type Request struct {
	UserID      int64
	Mode        Mode
	Page        int
	PageSize    int
	ExcludeSeen bool
}
