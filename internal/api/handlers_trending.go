// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package api

import (
	"net/http"
	"time"

	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/models"
	"github.com/launchgrid/feedrank/internal/trending"
)

// TrendingResponse is the data payload of GET /api/v1/trending.
type TrendingResponse struct {
	Scope      string                 `json:"scope"`
	Entries    []models.TrendingEntry `json:"entries"`
	Count      int                    `json:"count"`
	ComputedAt time.Time              `json:"computed_at"`
}

// GetTrending handles GET /api/v1/trending?scope=. Scope is "global"
// (default) or "topic:<name>". The list may be stale when the last
// recompute failed; ComputedAt tells the caller how stale.
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	scope, err := trending.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		rw.BadRequest(`scope must be "global" or "topic:<name>"`)
		return
	}

	entries, computedAt, err := h.trending.GetTrending(r.Context(), scope)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("scope", scope).Msg("trending unavailable")
		rw.Error(http.StatusServiceUnavailable, ErrCodeTrendingFailed, "trending is temporarily unavailable")
		return
	}

	rw.Success(TrendingResponse{
		Scope:      scope,
		Entries:    entries,
		Count:      len(entries),
		ComputedAt: computedAt,
	})
}
