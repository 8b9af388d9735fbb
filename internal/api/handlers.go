// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/launchgrid/feedrank/internal/feed"
	"github.com/launchgrid/feedrank/internal/interactions"
	"github.com/launchgrid/feedrank/internal/store"
	"github.com/launchgrid/feedrank/internal/trending"
)

// Handler holds the wired pipeline components behind the HTTP surface.
type Handler struct {
	assembler  *feed.Assembler
	seenFilter *feed.SeenFilter
	recorder   *interactions.Recorder
	trending   *trending.Computer
	store      store.Store
	validate   *validator.Validate
	startedAt  time.Time
}

// NewHandler creates a Handler.
func NewHandler(assembler *feed.Assembler, seenFilter *feed.SeenFilter, recorder *interactions.Recorder, trendingComputer *trending.Computer, s store.Store) *Handler {
	return &Handler{
		assembler:  assembler,
		seenFilter: seenFilter,
		recorder:   recorder,
		trending:   trendingComputer,
		store:      s,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		startedAt:  time.Now(),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the store must answer a bounded read.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := h.store.RecentCandidates(ctx, 1); err != nil {
		rw.ServiceUnavailable("store not ready")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// Health reports overall service health and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
