// Feedrank - Personalized Feed Ranking Service
// Copyright 2026 LaunchGrid Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchgrid/feedrank

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/launchgrid/feedrank/internal/logging"
)

// HTTPServer matches *http.Server's lifecycle methods so the service
// wrapper stays testable with fakes.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts an HTTP server's blocking ListenAndServe to
// suture's context-aware Serve: it runs the server in a goroutine, and
// on cancellation drains it with a bounded graceful shutdown.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server as a supervised service.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// the original context is already cancelled; shutdown needs its own
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's event log.
func (s *HTTPService) String() string {
	return "http-server"
}

// TickerService runs fn on a fixed interval until cancelled. A failing
// tick is logged and the loop keeps going; only cancellation stops it.
// Used for trending refresh, view-dedup pruning, and store GC.
type TickerService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
}

// NewTickerService creates a periodic service.
func NewTickerService(name string, interval time.Duration, fn func(ctx context.Context) error) *TickerService {
	return &TickerService{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	log := logging.WithComponent(s.name)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("periodic run failed")
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *TickerService) String() string {
	return s.name
}

// WorkerService adapts a blocking run function (like the interest
// profile worker) to a supervised service.
type WorkerService struct {
	name string
	run  func(ctx context.Context) error
}

// NewWorkerService wraps run as a supervised service.
func NewWorkerService(name string, run func(ctx context.Context) error) *WorkerService {
	return &WorkerService{name: name, run: run}
}

// Serve implements suture.Service.
func (s *WorkerService) Serve(ctx context.Context) error {
	return s.run(ctx)
}

// String implements fmt.Stringer.
func (s *WorkerService) String() string {
	return s.name
}
