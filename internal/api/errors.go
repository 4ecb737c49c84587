// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/pipeline"
)

// writeStoreError maps run store errors onto HTTP responses.
func writeStoreError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, history.ErrRunNotFound):
		rw.NotFound("run not found")
	case errors.Is(err, history.ErrLedgerClosed):
		rw.ServiceUnavailable("run ledger is closed")
	default:
		rw.InternalError("failed to read run ledger", err)
	}
}

// runErrorStatus returns the HTTP status for a failed synchronous run.
func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrNoTrainingRows):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
