// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

/*
Package metrics provides Prometheus metrics collection and export for observability.

# Overview

The package provides metrics for:
  - Pipeline stage latency, failures and table sizes
  - Join diagnostics (rows kept only by an outer join)
  - Model quality (R2, RMSE, skipped rows)
  - HTTP API latency and throughput in serve mode

# Export

In serve mode metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8478/metrics

After a one-shot run they can be written for node_exporter's textfile
collector (METRICS_TEXTFILE):

	metrics.WriteToTextfile("/var/lib/node_exporter/covidmobility.prom")

# Available Metrics

Pipeline Metrics:
  - pipeline_stage_duration_seconds: Stage wall-clock time (histogram)
    Labels: stage
  - pipeline_stage_errors_total: Failed stages (counter)
    Labels: stage, error_type
  - pipeline_table_rows: Rows per table after its stage (gauge)
    Labels: stage, table
  - pipeline_join_outer_only_rows: Outer-only join rows (gauge)
    Labels: join
  - pipeline_runs_total: Runs by outcome (counter)
    Labels: status
  - pipeline_last_success_timestamp: Unix time of the last good run (gauge)

Model Metrics:
  - model_r2, model_rmse, model_skipped_rows (gauges)
    Labels: model, split

API Metrics:
  - api_requests_total: Requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)

# Thread Safety

All metric operations are safe for concurrent use.
*/
package metrics
