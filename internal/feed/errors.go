// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package feed

import "errors"

var (
	// ErrDuplicateSuppressed marks an interaction that was dropped as a
	// repeat. Callers translate it to a success no-op, never a failure.
	ErrDuplicateSuppressed = errors.New("duplicate interaction suppressed")

	// ErrSignalUnavailable marks a single candidate whose counters could
	// not be loaded. Aggregation defaults the signals to zero and keeps
	// ranking the rest of the page.
	ErrSignalUnavailable = errors.New("signal unavailable")

	// ErrStorageTimeout marks a storage read that exceeded its deadline.
	// The assembler falls back to a recency-ordered feed for that request.
	ErrStorageTimeout = errors.New("storage timeout")

	// ErrTrendingCompute marks a failed trending recomputation. The cache
	// serves its last-known value past TTL instead of failing.
	ErrTrendingCompute = errors.New("trending recompute failed")

	// ErrNoCandidates means candidate collection itself failed, so the
	// response is an explicit empty feed with a distinguishable source.
	ErrNoCandidates = errors.New("no candidates available")
)
