// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/covidmobility/internal/models"
)

var (
	// Pipeline Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}, // Stages range from a label join to a full CSV load
		},
		[]string{"stage"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_errors_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage", "error_type"},
	)

	TableRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_table_rows",
			Help: "Row count of each table after the stage that wrote it",
		},
		[]string{"stage", "table"},
	)

	JoinOuterOnlyRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_join_outer_only_rows",
			Help: "Rows kept only by the outer side of a join",
		},
		[]string{"join"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"}, // "succeeded", "failed"
	)

	PipelineLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_last_success_timestamp",
			Help: "Unix timestamp of the last successful pipeline run",
		},
	)

	// Model Metrics
	ModelR2 = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_r2",
			Help: "Coefficient of determination of the last fitted model",
		},
		[]string{"model", "split"}, // split: "train", "test"
	)

	ModelRMSE = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_rmse",
			Help: "Root mean squared error of the last fitted model",
		},
		[]string{"model", "split"},
	)

	ModelSkippedRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_skipped_rows",
			Help: "Rows dropped from the last fit for a NULL feature or label",
		},
		[]string{"model", "split"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version information",
		},
		[]string{"version"},
	)
)

// RecordStage records the duration and outcome of a pipeline stage
func RecordStage(stage string, duration time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		StageErrors.WithLabelValues(stage, errorType).Inc()
	}
}

// RecordTableCounts records the row counts written by a stage
func RecordTableCounts(stage string, counts []models.TableCount) {
	for _, c := range counts {
		TableRows.WithLabelValues(stage, c.Table).Set(float64(c.Rows))
	}
}

// RecordJoinStats records row counts and outer-only rows of every join
func RecordJoinStats(stats []models.JoinStat) {
	for _, s := range stats {
		TableRows.WithLabelValues("join", s.Name).Set(float64(s.Rows))
		JoinOuterOnlyRows.WithLabelValues(s.Name).Set(float64(s.OuterOnly()))
	}
}

// RecordModel records the quality metrics of a fitted model
func RecordModel(m *models.ModelReport) {
	ModelR2.WithLabelValues(m.Name, "train").Set(m.Train.R2)
	ModelR2.WithLabelValues(m.Name, "test").Set(m.Test.R2)
	ModelRMSE.WithLabelValues(m.Name, "train").Set(m.Train.RMSE)
	ModelRMSE.WithLabelValues(m.Name, "test").Set(m.Test.RMSE)
	ModelSkippedRows.WithLabelValues(m.Name, "train").Set(float64(m.SkippedTrain))
	ModelSkippedRows.WithLabelValues(m.Name, "test").Set(float64(m.SkippedTest))
}

// RecordRun records a finished pipeline run
func RecordRun(status string) {
	PipelineRuns.WithLabelValues(status).Inc()
	if status == models.RunStatusSucceeded {
		PipelineLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetAppInfo publishes the running version
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version).Set(1)
}

// WriteToTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteToTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
