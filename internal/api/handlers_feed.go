// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/launchgrid/feedrank/internal/feed"
	"github.com/launchgrid/feedrank/internal/logging"
)

// FeedResponse is the data payload of GET /api/v1/feed.
type FeedResponse struct {
	Results  []int64 `json:"results"`
	Count    int     `json:"count"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	HasNext  bool    `json:"has_next"`

	// Source distinguishes ranked pages from degraded ones:
	// "ranked", "fallback_recency", or "unavailable".
	Source string `json:"source"`
}

// GetFeed handles GET /api/v1/feed?mode=&page=&page_size=&exclude_seen=.
// A degraded read never surfaces as an HTTP error: the response carries a
// distinguishable source instead.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := UserID(r)
	if !ok {
		rw.Unauthorized("missing or invalid X-User-ID header")
		return
	}

	mode, ok := feed.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		rw.BadRequest("mode must be one of: hot, new, top")
		return
	}

	page, err := positiveIntParam(r, "page", 1)
	if err != nil {
		rw.BadRequest("page must be a positive integer")
		return
	}
	pageSize, err := positiveIntParam(r, "page_size", 0)
	if err != nil {
		rw.BadRequest("page_size must be a positive integer")
		return
	}
	excludeSeen, err := boolParam(r, "exclude_seen")
	if err != nil {
		rw.BadRequest("exclude_seen must be true or false")
		return
	}

	result, err := h.assembler.GetFeed(r.Context(), feed.Request{
		UserID:      userID,
		Mode:        mode,
		Page:        page,
		PageSize:    pageSize,
		ExcludeSeen: excludeSeen,
	})
	if err != nil && !errors.Is(err, feed.ErrNoCandidates) {
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("feed assembly failed")
		rw.InternalError("feed assembly failed")
		return
	}

	// Seen marking is the client's call (POST /seen with source
	// "feed_delivery" once a page renders). Marking here would combine
	// with offset pagination to skip items on the next page.

	rw.SuccessWithPagination(FeedResponse{
		Results:  result.Results,
		Count:    len(result.Results),
		Page:     result.Page,
		PageSize: result.PageSize,
		HasNext:  result.HasNext,
		Source:   string(result.Source),
	}, &PaginationMeta{
		Count:    len(result.Results),
		Page:     result.Page,
		PageSize: result.PageSize,
		HasNext:  result.HasNext,
	})
}

// positiveIntParam parses a positive integer query parameter, returning
// def when absent.
func positiveIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

// boolParam parses an optional boolean query parameter, defaulting false.
func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
