// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

// Package main is the entry point for the Feedrank server.
//
// Feedrank is a personalized feed ranking service: it records user
// interactions (views, likes, comments, shares, bookmarks), aggregates
// them into per-content engagement signals, and assembles ranked,
// paginated feeds with recency decay, social-graph boosts, and
// seen-content filtering. A trending sidecar surfaces high-velocity
// content per scope.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Store: BadgerDB (or in-memory for development)
//  3. Feed pipeline: aggregator, scorer, seen filter, assembler
//  4. Interaction recorder with view dedup and the profile worker
//  5. Trending computer with singleflight-coalesced recomputation
//  6. HTTP API (chi) under a suture supervision tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (FEEDRANK_ prefix, "__" separates sections)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (bounded by
//     server.shutdown_timeout)
//   - Stops the maintenance loops and closes the store
//
// # Example Usage
//
// Development with an in-memory store:
//
//	export FEEDRANK_STORE__BACKEND=memory
//	export FEEDRANK_LOGGING__FORMAT=console
//	./feedrank
//
// Production with BadgerDB:
//
//	export FEEDRANK_STORE__PATH=/data/feedrank
//	export FEEDRANK_SERVER__PORT=8440
//	./feedrank
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/launchgrid/feedrank/internal/api"
	"github.com/launchgrid/feedrank/internal/config"
	"github.com/launchgrid/feedrank/internal/feed"
	"github.com/launchgrid/feedrank/internal/interactions"
	"github.com/launchgrid/feedrank/internal/logging"
	"github.com/launchgrid/feedrank/internal/store"
	"github.com/launchgrid/feedrank/internal/supervisor"
	"github.com/launchgrid/feedrank/internal/trending"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		// Default logger: config not yet available.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend", cfg.Store.Backend).
		Int("port", cfg.Server.Port).
		Msg("Starting Feedrank")

	// Initialize the store.
	var (
		st        store.Store
		badgerDB  *store.Badger
		closeFunc func() error
	)
	switch cfg.Store.Backend {
	case "memory":
		logging.Warn().Msg("Using in-memory store: all state is lost on restart")
		st = store.NewMemory()
		closeFunc = func() error { return nil }
	default:
		badgerDB, err = store.OpenBadger(cfg.Store.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open store")
		}
		st = badgerDB
		closeFunc = badgerDB.Close
	}
	defer func() {
		if err := closeFunc(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// Feed pipeline. Author reputation has no upstream source yet, so
	// the aggregator runs on an empty static table and every author
	// scores at the neutral default.
	scorer := feed.NewScorer(cfg.Scoring)
	aggregator := feed.NewAggregator(st, st, feed.StaticReputation{})
	seenFilter := feed.NewSeenFilter(st, scorer.SeenPenalty())
	assembler := feed.NewAssembler(st, st, aggregator, scorer, seenFilter, cfg.Feed)

	// Interaction recorder and trending computer.
	recorder := interactions.NewRecorder(st, cfg.Interactions)
	trendingComputer := trending.NewComputer(st, st, cfg.Trending)

	// HTTP surface.
	handler := api.NewHandler(assembler, seenFilter, recorder, trendingComputer, st)
	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	mw := api.NewChiMiddleware(mwCfg)
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	// Supervision tree: the slog adapter bridges zerolog to suture's
	// sutureslog event hook.
	tree := supervisor.NewTree(
		slog.New(logging.NewSlogHandler()),
		supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout},
	)

	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	tree.AddMaintenanceService(supervisor.NewWorkerService("profile-worker", recorder.RunProfileWorker))
	tree.AddMaintenanceService(supervisor.NewTickerService("trending-refresh", cfg.Trending.TTL, trendingComputer.Refresh))
	tree.AddMaintenanceService(supervisor.NewTickerService("dedup-prune", cfg.Interactions.ViewDedupWindow, func(context.Context) error {
		pruned := recorder.PruneDedup()
		if pruned > 0 {
			logging.Debug().Int("pruned", pruned).Msg("View dedup window pruned")
		}
		return nil
	}))
	if badgerDB != nil {
		tree.AddMaintenanceService(supervisor.NewTickerService("store-gc", cfg.Store.GCInterval, func(context.Context) error {
			if err := badgerDB.RunGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				return err
			}
			return nil
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Feedrank ready")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		if closeErr := closeFunc(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing store")
		}
		os.Exit(1)
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}

	logging.Info().Msg("Feedrank stopped")
}
