// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/models"
)

// Health status values.
const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	Uptime        float64            `json:"uptime_seconds"`
	RunInProgress bool               `json:"run_in_progress"`
	LastRun       *models.RunSummary `json:"last_run,omitempty"`
}

// Health handles health check requests.
// The service is degraded when the most recent run failed or the ledger
// cannot be read.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	health := HealthStatus{
		Status:        statusHealthy,
		Version:       h.version,
		Uptime:        time.Since(h.startTime).Seconds(),
		RunInProgress: h.busy(),
	}

	latest, err := h.store.Latest(r.Context())
	switch {
	case err == nil:
		s := latest.Summary()
		health.LastRun = &s
		if latest.Status == models.RunStatusFailed {
			health.Status = statusDegraded
		}
	case errors.Is(err, history.ErrRunNotFound):
		// No run yet.
	default:
		health.Status = statusDegraded
	}

	rw.Success(health)
}

// HealthLive handles liveness probe requests. It succeeds while the
// process is serving, regardless of the run store.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests. It returns 503 when the
// run store cannot be read.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if _, err := h.store.List(r.Context(), 1); err != nil {
		rw.ServiceUnavailable("run ledger unavailable")
		return
	}
	rw.Success(map[string]interface{}{
		"ready":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}
