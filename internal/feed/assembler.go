// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/launchgrid/feedrank/internal/config"
	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/metrics"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

// Assembler orchestrates one feed request through its stages:
// collecting candidates, scoring, filtering, paginating. There are no
// retries across stages; a stage failure degrades the response (recency
// fallback, or an explicit empty page) instead of erroring the request.
type Assembler struct {
	content    store.ContentStore
	graph      store.SocialGraphStore
	aggregator *Aggregator
	scorer     *Scorer
	seenFilter *SeenFilter
	cfg        config.FeedConfig
	breaker    *gobreaker.CircuitBreaker[[]models.ContentItem]
	log        zerolog.Logger
	now        func() time.Time
}

// NewAssembler wires the pipeline stages together. The candidate fetch
// sits behind a circuit breaker so a struggling store sheds load fast
// instead of stacking up timed-out requests.
func NewAssembler(content store.ContentStore, graph store.SocialGraphStore, aggregator *Aggregator, scorer *Scorer, seenFilter *SeenFilter, cfg config.FeedConfig) *Assembler {
	breaker := gobreaker.NewCircuitBreaker[[]models.ContentItem](gobreaker.Settings{
		Name:    "candidate_fetch",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Assembler{
		content:    content,
		graph:      graph,
		aggregator: aggregator,
		scorer:     scorer,
		seenFilter: seenFilter,
		cfg:        cfg,
		breaker:    breaker,
		log:        logging.WithComponent("assembler"),
		now:        time.Now,
	}
}

// SetClock overrides the clock for tests.
func (a *Assembler) SetClock(now func() time.Time) {
	a.now = now
}

// GetFeed assembles one feed page. It never returns a hard error for a
// degraded read: scoring failures fall back to recency ordering, and only
// a total candidate-collection failure yields an (explicitly labelled)
// empty page alongside ErrNoCandidates.
func (a *Assembler) GetFeed(ctx context.Context, req Request) (Page, error) {
	start := a.now()
	req = a.normalize(req)

	page, err := a.assemble(ctx, req)

	status := string(page.Source)
	metrics.RecordFeedRequest(string(req.Mode), status, a.now().Sub(start))
	return page, err
}

func (a *Assembler) assemble(ctx context.Context, req Request) (Page, error) {
	// CollectingCandidates. The pool is page-independent: every page of a
	// sequence ranks the same candidate set, so concatenating pages until
	// has_next is false covers each candidate exactly once.
	candidates, err := a.collect(ctx, req)
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", req.UserID).Msg("candidate collection failed")
		return Page{Results: []int64{}, Page: req.Page, PageSize: req.PageSize, Source: SourceEmpty},
			fmt.Errorf("%w: %w", ErrNoCandidates, err)
	}

	// Scoring
	filtered, scoreErr := a.scoreAndFilter(ctx, req, candidates)
	if scoreErr != nil {
		// Fall back to pure recency for this request only.
		a.log.Warn().Err(scoreErr).Int64("user_id", req.UserID).Msg("scoring unavailable, serving recency fallback")
		metrics.FeedFallbacksTotal.Inc()
		page := a.paginate(req, a.recencyOrder(candidates))
		page.Source = SourceFallbackRecency
		return page, nil
	}

	// Paginating
	page := a.paginate(req, filtered)
	page.Source = SourceRanked
	return page, nil
}

// scoreAndFilter refreshes counters, runs aggregation, scoring, and the
// seen filter over one candidate batch. A counter-fetch failure is the
// one error returned here; the caller answers it with the recency
// fallback.
func (a *Assembler) scoreAndFilter(ctx context.Context, req Request, candidates []models.ContentItem) ([]RankedCandidate, error) {
	candidates, err := a.refreshCounters(ctx, candidates)
	if err != nil {
		return nil, err
	}

	scoreStart := a.now()
	signals, err := a.aggregator.Aggregate(ctx, req.UserID, candidates)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrStorageTimeout, err)
		}
		return nil, err
	}
	ranked := a.scorer.Rank(signals, req.Mode)
	metrics.ScoringDuration.Observe(a.now().Sub(scoreStart).Seconds())

	mode := SeenDeprioritize
	if req.ExcludeSeen {
		mode = SeenExclude
	}
	return a.seenFilter.Filter(ctx, req.UserID, ranked, mode), nil
}

// refreshCounters re-reads live engagement counters for the batch. A
// candidate missing from the batch keeps its collected snapshot with a
// zero-signal note rather than aborting the page; a failed batch read
// bubbles up as a storage timeout.
func (a *Assembler) refreshCounters(ctx context.Context, candidates []models.ContentItem) ([]models.ContentItem, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	fresh, err := a.content.GetContentBatch(fetchCtx, ids)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrStorageTimeout, err)
		}
		return nil, err
	}

	out := make([]models.ContentItem, 0, len(candidates))
	for _, c := range candidates {
		item, ok := fresh[c.ID]
		if !ok {
			// counters missing for this one item: default to the
			// collected snapshot, keep ranking
			metrics.SignalDefaultsTotal.Inc()
			a.log.Debug().Int64("content_id", c.ID).Msg("counters unavailable, using snapshot")
			item = c
		}
		out = append(out, item)
	}
	return out, nil
}

// collect builds the candidate pool: the bounded recency superset pulled
// through the circuit breaker, merged with recent content from authors the
// user follows that the global window may have already rotated out.
func (a *Assembler) collect(ctx context.Context, req Request) ([]models.ContentItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	candidates, err := a.breaker.Execute(func() ([]models.ContentItem, error) {
		return a.content.RecentCandidates(fetchCtx, a.cfg.MaxCandidates)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrStorageTimeout, err)
		}
		return nil, err
	}
	return a.mergeFollowed(ctx, req, candidates), nil
}

// mergeFollowed appends followed-author content missing from the recency
// pool. Any failure here degrades to the plain pool with a warning; the
// follow graph enriches candidates, it is not a dependency.
func (a *Assembler) mergeFollowed(ctx context.Context, req Request, candidates []models.ContentItem) []models.ContentItem {
	followed, err := a.graph.FollowedSet(ctx, req.UserID)
	if err != nil {
		a.log.Warn().Err(err).Int64("user_id", req.UserID).Msg("follow lookup failed, skipping followed-author candidates")
		return candidates
	}
	if len(followed) == 0 {
		return candidates
	}
	authorIDs := make([]int64, 0, len(followed))
	for id := range followed {
		authorIDs = append(authorIDs, id)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	since := a.now().Add(-a.cfg.FollowedLookback)
	limit := req.PageSize * a.cfg.OversampleFactor
	authored, err := a.content.AuthoredSince(fetchCtx, authorIDs, since, limit)
	if err != nil {
		a.log.Warn().Err(err).Int64("user_id", req.UserID).Msg("followed-author fetch failed, serving recency pool only")
		return candidates
	}

	have := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		have[c.ID] = struct{}{}
	}
	for _, c := range authored {
		if _, ok := have[c.ID]; !ok {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// recencyOrder builds the fallback ranking: creation time only, scored
// so that SortRanked's tie-break rules still apply.
func (a *Assembler) recencyOrder(candidates []models.ContentItem) []RankedCandidate {
	now := a.now()
	ranked := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = RankedCandidate{
			ContentID: c.ID,
			Score:     -AgeSeconds(c.CreatedAt, now),
			CreatedAt: c.CreatedAt,
		}
	}
	SortRanked(ranked)
	return ranked
}

// paginate slices the ranked list with the offset+limit contract. Within
// one ranking pass offsets are stable; across requests scores may move
// with the underlying counters, which is accepted.
func (a *Assembler) paginate(req Request, ranked []RankedCandidate) Page {
	offset := (req.Page - 1) * req.PageSize

	results := []int64{}
	if offset < len(ranked) {
		end := offset + req.PageSize
		if end > len(ranked) {
			end = len(ranked)
		}
		results = make([]int64, 0, end-offset)
		for _, c := range ranked[offset:end] {
			results = append(results, c.ContentID)
		}
	}

	return Page{
		Results:  results,
		Page:     req.Page,
		PageSize: req.PageSize,
		HasNext:  offset+req.PageSize < len(ranked),
	}
}

func (a *Assembler) normalize(req Request) Request {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = a.cfg.DefaultPageSize
	}
	if req.PageSize > a.cfg.MaxPageSize {
		req.PageSize = a.cfg.MaxPageSize
	}
	if !req.Mode.Valid() {
		req.Mode = ModeHot
	}
	return req
}
