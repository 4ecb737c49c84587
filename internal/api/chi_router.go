// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/covidmobility/internal/config"
	"github.com/tomtom215/covidmobility/internal/middleware"
)

// NewRouter configures all HTTP routes.
func NewRouter(handler *Handler, cfg *config.ServerConfig) http.Handler {
	mw := NewChiMiddleware(ChiMiddlewareConfigFrom(cfg))
	r := chi.NewRouter()

	// Global Middleware Stack
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(RequestLogger())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	// Health Endpoints
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	// Run Endpoints
	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json", "text/plain"))

		r.Get("/", handler.ListRuns)
		r.With(mw.RateLimitTrigger()).Post("/", handler.TriggerRun)
		r.Get("/latest", handler.GetLatestRun)
		r.Get("/{id}", handler.GetRun)
		r.Get("/{id}/tables", handler.GetRunTables)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
