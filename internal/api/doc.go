// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

/*
Package api provides the HTTP API of the covidmobility server.

The API exposes the run ledger and lets operators trigger pipeline runs.

Endpoints:

	GET  /api/v1/health              overall status, version, last run
	GET  /api/v1/health/live         liveness probe
	GET  /api/v1/health/ready        readiness probe (run store reachable)
	GET  /api/v1/runs?limit=N        run summaries, newest first
	POST /api/v1/runs[?wait=true]    start a run (409 while one is active)
	GET  /api/v1/runs/latest         full report of the latest run
	GET  /api/v1/runs/{id}           full report of one run
	GET  /api/v1/runs/{id}/tables    the report rendered as text tables
	GET  /metrics                    Prometheus exposition

Every JSON endpoint wraps its payload in APIResponse:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}

Usage Example:

	handler := api.NewHandler(ctx, runner, store, version)
	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: api.NewRouter(handler, &cfg.Server)}
*/
package api
