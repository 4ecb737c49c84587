// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
	"github.com/tomtom215/covidmobility/internal/report"
	"github.com/tomtom215/covidmobility/internal/validation"
)

const defaultRunsLimit = 20

// runsQuery holds the validated query parameters of GET /api/v1/runs.
type runsQuery struct {
	Limit int `validate:"min=1,max=500"`
}

// ListRuns returns run summaries, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q := runsQuery{Limit: defaultRunsLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		q.Limit = n
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	runs, err := h.store.List(r.Context(), q.Limit)
	if err != nil {
		writeStoreError(rw, err)
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	rw.List(runs, len(runs))
}

// GetLatestRun returns the full report of the most recent run.
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rep, err := h.store.Latest(r.Context())
	if err != nil {
		writeStoreError(rw, err)
		return
	}
	rw.Success(rep)
}

// GetRun returns the full report of one run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rep, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(rw, err)
		return
	}
	rw.Success(rep)
}

// GetRunTables renders one run report as plain-text tables.
func (h *Handler) GetRunTables(w http.ResponseWriter, r *http.Request) {
	rep, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(NewResponseWriter(w, r), err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	report.Render(w, rep)
}

// TriggerRun starts a pipeline run.
//
// By default the run starts in the background and the handler answers 202.
// With ?wait=true the handler runs the pipeline within the request and
// returns the finished report.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			rw.BadRequest("wait must be a boolean")
			return
		}
		wait = b
	}

	if wait {
		h.runAndRespond(rw, r)
		return
	}

	requestID := logging.RequestIDFromContext(r.Context())
	started := h.startBackground(func(ctx context.Context) {
		ctx = logging.ContextWithRequestID(ctx, requestID)
		if _, err := h.runner.Run(ctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Triggered run did not succeed")
		}
	})
	if !started {
		rw.Conflict("a pipeline run is already in progress")
		return
	}
	rw.Accepted(map[string]string{"status": "started"})
}

func (h *Handler) runAndRespond(rw *ResponseWriter, r *http.Request) {
	if h.busy() {
		rw.Conflict("a pipeline run is already in progress")
		return
	}

	rep, err := h.runner.Run(r.Context())
	if err != nil {
		status := runErrorStatus(err)
		code := ErrCodeRunFailed
		if status == http.StatusConflict {
			code = ErrCodeConflict
		}
		var details interface{}
		if rep != nil {
			details = rep.Summary()
		}
		rw.ErrorWithDetails(status, code, err.Error(), details)
		return
	}
	rw.Success(rep)
}
