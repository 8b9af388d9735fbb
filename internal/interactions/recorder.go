// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package interactions records typed user-content interactions and keeps
// the engagement counters consistent under concurrent writes.
//
// The write path is deliberately explicit: dedup check, event append,
// atomic counter increment, best-effort interest-profile enqueue. No
// implicit event hooks, no hidden side effects.
package interactions

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/launchgrid/feedrank/internal/cache"
	"github.com/launchgrid/feedrank/internal/config"
	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/metrics"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/store"
)

// Outcome classifies what recording an interaction did.
type Outcome string

const (
	// OutcomeCreated means a new event was recorded and counted.
	OutcomeCreated Outcome = "created"
	// OutcomeDuplicateSuppressed means the interaction was a repeat and
	// was dropped. The caller reports success; a repeat is not a failure.
	OutcomeDuplicateSuppressed Outcome = "duplicate_suppressed"
)

// affinityDelta is the interest-profile weight each interaction type
// contributes to the user's topic affinity.
var affinityDelta = map[models.InteractionType]float64{
	models.InteractionView:     0.1,
	models.InteractionLike:     1.0,
	models.InteractionComment:  1.5,
	models.InteractionShare:    2.0,
	models.InteractionBookmark: 1.0,
}

type profileUpdate struct {
	userID    int64
	contentID int64
	typ       models.InteractionType
}

// Recorder is the interaction write path.
type Recorder struct {
	store   store.Store
	views   *cache.DedupWindow
	cfg     config.InteractionsConfig
	updates chan profileUpdate
	log     zerolog.Logger
	now     func() time.Time
}

// NewRecorder creates a Recorder with a fresh view-dedup window and
// profile-update queue.
func NewRecorder(s store.Store, cfg config.InteractionsConfig) *Recorder {
	return &Recorder{
		store:   s,
		views:   cache.NewDedupWindow(cfg.ViewDedupWindow, cfg.ViewDedupMaxKeys),
		cfg:     cfg,
		updates: make(chan profileUpdate, cfg.ProfileQueueSize),
		log:     logging.WithComponent("recorder"),
		now:     time.Now,
	}
}

// SetClock overrides the clock for tests, including the dedup window's.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
	r.views.SetClock(now)
}

// Record processes one interaction. Duplicates are suppressed, not
// failed: a repeat view inside the dedup window, or a repeat like or
// bookmark ever, returns OutcomeDuplicateSuppressed with a nil error.
func (r *Recorder) Record(ctx context.Context, ev models.InteractionEvent) (Outcome, error) {
	if !ev.Type.Valid() {
		return "", fmt.Errorf("unknown interaction type %q", ev.Type)
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}

	// Views dedup before anything is written: a repeat inside the window
	// leaves no trace at all.
	if ev.Type == models.InteractionView && !r.views.Allow(ev.DedupKey()) {
		metrics.InteractionsSuppressed.WithLabelValues(string(ev.Type), "window").Inc()
		return OutcomeDuplicateSuppressed, nil
	}

	created, err := r.store.AppendInteraction(ctx, ev)
	if err != nil {
		r.forgetView(ev)
		return "", fmt.Errorf("append interaction: %w", err)
	}
	if !created {
		metrics.InteractionsSuppressed.WithLabelValues(string(ev.Type), "unique").Inc()
		return OutcomeDuplicateSuppressed, nil
	}

	if err := r.store.IncrementCounter(ctx, ev.ContentID, ev.Type); err != nil {
		metrics.CounterIncrementErrors.Inc()
		r.forgetView(ev)
		return "", fmt.Errorf("increment %s counter for content %d: %w", ev.Type, ev.ContentID, err)
	}
	metrics.InteractionsRecorded.WithLabelValues(string(ev.Type)).Inc()

	// Best-effort interest profile update: never blocks, never fails the
	// interaction.
	select {
	case r.updates <- profileUpdate{userID: ev.UserID, contentID: ev.ContentID, typ: ev.Type}:
	default:
		metrics.ProfileUpdatesDropped.Inc()
	}

	return OutcomeCreated, nil
}

// forgetView rolls back a view's dedup-window admission when its write
// failed, so the client's retry is not silently suppressed.
func (r *Recorder) forgetView(ev models.InteractionEvent) {
	if ev.Type == models.InteractionView {
		r.views.Forget(ev.DedupKey())
	}
}

// PruneDedup drops expired view-dedup entries. Called periodically by the
// supervisor's maintenance loop.
func (r *Recorder) PruneDedup() int {
	return r.views.Prune()
}

// RunProfileWorker drains the profile-update queue until ctx is
// cancelled, throttled so profile writes never compete with the hot
// path. All failures here are logged and swallowed.
func (r *Recorder) RunProfileWorker(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Limit(r.cfg.ProfileRatePerSecond), 1)
	log := logging.WithComponent("profile_worker")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-r.updates:
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			r.applyProfileUpdate(ctx, log, upd)
		}
	}
}

func (r *Recorder) applyProfileUpdate(ctx context.Context, log zerolog.Logger, upd profileUpdate) {
	batch, err := r.store.GetContentBatch(ctx, []int64{upd.contentID})
	if err != nil {
		log.Warn().Err(err).Int64("content_id", upd.contentID).Msg("profile update skipped")
		return
	}
	item, ok := batch[upd.contentID]
	if !ok || item.Topic == "" {
		return
	}
	if err := r.store.AddTopicAffinity(ctx, upd.userID, item.Topic, affinityDelta[upd.typ]); err != nil {
		log.Warn().Err(err).
			Int64("user_id", upd.userID).
			Str("topic", item.Topic).
			Msg("affinity write failed")
	}
}
