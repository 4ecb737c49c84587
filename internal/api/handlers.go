// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package api

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/models"
)

// Runner executes pipeline runs. *pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context) (*models.RunReport, error)
	Running() bool
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, background run tracking
//   - handlers_health.go: health and probe endpoints
//   - handlers_runs.go: run ledger and run trigger endpoints
type Handler struct {
	runner    Runner
	store     history.Store
	version   string
	startTime time.Time

	// baseCtx bounds runs started in the background. It is the server
	// lifetime context, not a request context.
	baseCtx context.Context

	mu      sync.Mutex
	pending bool
	wg      sync.WaitGroup
}

// NewHandler creates a new API handler. Background runs started through
// the API inherit ctx and stop when it is cancelled.
func NewHandler(ctx context.Context, runner Runner, store history.Store, version string) *Handler {
	return &Handler{
		runner:    runner,
		store:     store,
		version:   version,
		startTime: time.Now(),
		baseCtx:   ctx,
	}
}

// Wait blocks until every background run started by the handler has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// busy reports whether a run is active or about to start.
func (h *Handler) busy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending || h.runner.Running()
}

// startBackground starts a run in a goroutine. It returns false when a run
// is already active or pending.
func (h *Handler) startBackground(fn func(ctx context.Context)) bool {
	h.mu.Lock()
	if h.pending || h.runner.Running() {
		h.mu.Unlock()
		return false
	}
	h.pending = true
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			h.pending = false
			h.mu.Unlock()
		}()
		fn(h.baseCtx)
	}()
	return true
}
