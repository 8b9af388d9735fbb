// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/launchgrid/feedrank/internal/interactions"
	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/models"
)

// maxBodyBytes bounds request bodies on the write path.
const maxBodyBytes = 64 * 1024

// InteractionRequest is the body of POST /api/v1/interactions.
type InteractionRequest struct {
	ContentID int64             `json:"content_id" validate:"required,gt=0"`
	Type      string            `json:"type" validate:"required,oneof=view like comment share bookmark"`
	Metadata  map[string]string `json:"metadata,omitempty" validate:"omitempty,max=16"`
}

// InteractionResponse is the data payload of POST /api/v1/interactions.
type InteractionResponse struct {
	ContentID int64  `json:"content_id"`
	Type      string `json:"type"`
	Outcome   string `json:"outcome"`
}

// PostInteraction handles POST /api/v1/interactions. A newly recorded
// interaction answers 201; a suppressed repeat answers 200 with the same
// shape, because a duplicate is a success, not an error.
func (h *Handler) PostInteraction(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := UserID(r)
	if !ok {
		rw.Unauthorized("missing or invalid X-User-ID header")
		return
	}

	var req InteractionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rw.ValidationError("invalid interaction", err.Error())
		return
	}

	outcome, err := h.recorder.Record(r.Context(), models.InteractionEvent{
		UserID:    userID,
		ContentID: req.ContentID,
		Type:      models.InteractionType(req.Type),
		ClientKey: clientKey(r, userID),
		Metadata:  req.Metadata,
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).
			Int64("user_id", userID).
			Int64("content_id", req.ContentID).
			Str("type", req.Type).
			Msg("record interaction failed")
		rw.InternalError("interaction could not be recorded")
		return
	}

	resp := InteractionResponse{
		ContentID: req.ContentID,
		Type:      req.Type,
		Outcome:   string(outcome),
	}
	if outcome == interactions.OutcomeCreated {
		rw.Created(resp)
		return
	}
	rw.Success(resp)
}

// ListInteractions handles GET /api/v1/interactions?content_id=N,
// returning the caller's event history for one content item.
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := UserID(r)
	if !ok {
		rw.Unauthorized("missing or invalid X-User-ID header")
		return
	}

	contentID, err := strconv.ParseInt(r.URL.Query().Get("content_id"), 10, 64)
	if err != nil || contentID <= 0 {
		rw.BadRequest("content_id must be a positive integer")
		return
	}

	events, err := h.store.ListInteractions(r.Context(), userID, contentID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("list interactions failed")
		rw.InternalError("interactions could not be listed")
		return
	}

	rw.Success(map[string]interface{}{
		"content_id":   contentID,
		"interactions": events,
		"count":        len(events),
	})
}

// SeenRequest is the body of POST /api/v1/seen.
type SeenRequest struct {
	ContentIDs []int64 `json:"content_ids" validate:"required,min=1,max=500,dive,gt=0"`
	Source     string  `json:"source" validate:"omitempty,oneof=feed_delivery explicit"`
}

// PostSeen handles POST /api/v1/seen: a batched, idempotent mark.
func (h *Handler) PostSeen(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, ok := UserID(r)
	if !ok {
		rw.Unauthorized("missing or invalid X-User-ID header")
		return
	}

	var req SeenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rw.ValidationError("invalid seen batch", err.Error())
		return
	}
	if req.Source == "" {
		req.Source = "explicit"
	}

	marked, err := h.seenFilter.MarkSeen(r.Context(), userID, req.ContentIDs, req.Source)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("mark seen failed")
		rw.InternalError("seen records could not be stored")
		return
	}

	rw.Success(map[string]interface{}{
		"marked": marked,
		"total":  len(req.ContentIDs),
	})
}

// clientKey identifies the viewer for view deduplication: the user ID
// for authenticated callers, so dedup follows the account across
// devices.
func clientKey(r *http.Request, userID int64) string {
	return "u:" + strconv.FormatInt(userID, 10)
}
