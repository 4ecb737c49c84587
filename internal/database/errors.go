// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

import (
	"errors"
	"io"

	"github.com/tomtom215/covidmobility/internal/logging"
)

var (
	// ErrInputMissing is returned by Ingest when a source CSV file does not exist.
	ErrInputMissing = errors.New("input file missing")

	// ErrSnapshotMissing is returned when a stage expects a Parquet snapshot that was never written.
	ErrSnapshotMissing = errors.New("snapshot missing")
)

// closeWithLog closes a resource and logs any error
// Use this for cleanup operations where errors should be acknowledged but not fail the operation
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error
// Use this for cleanup operations in error paths where Close() errors are not actionable
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
