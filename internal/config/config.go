// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

// Package config loads covidmobility configuration with Koanf v2.
//
// Configuration Loading Order (highest priority wins):
//  1. Defaults: built-in values reproducing the reference analysis
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: INPUT_DIR, OUTPUT_DIR, SPLIT_DATE, LOG_LEVEL, ...
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// DateLayout is the layout of every date-valued setting.
const DateLayout = "2006-01-02"

// Regression solvers.
const (
	SolverElasticNet = "elasticnet"
	SolverOLS        = "ols"
)

// Config holds all application configuration.
type Config struct {
	Input    InputConfig    `koanf:"input"`
	Output   OutputConfig   `koanf:"output"`
	Database DatabaseConfig `koanf:"database"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Outliers OutliersConfig `koanf:"outliers"`
	Model    ModelConfig    `koanf:"model"`
	History  HistoryConfig  `koanf:"history"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// InputConfig locates the five source CSV files.
//
// Environment Variables:
//   - INPUT_DIR: directory holding the CSV files (default: ./data)
type InputConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// OutputConfig controls where stage snapshots and reports are written.
// Every run overwrites the previous layout.
type OutputConfig struct {
	Dir string `koanf:"dir" validate:"required"`

	// ReportFile is the name of the JSON run report inside Dir.
	ReportFile string `koanf:"report_file" validate:"required"`

	// MetricsTextfile, when set, receives a Prometheus text-format dump after each run
	// (node_exporter textfile collector layout).
	MetricsTextfile string `koanf:"metrics_textfile"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file; ":memory:" keeps every stage in memory.
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory" validate:"required"`
	Threads   int    `koanf:"threads" validate:"gte=0"` // 0 = runtime.NumCPU()
}

// PipelineConfig holds the data-quality knobs of the cleanse, join and split stages.
type PipelineConfig struct {
	// Country is the country_region / country_code value kept by the cleanse stage.
	Country string `koanf:"country" validate:"required"`

	// NationalParent is the parent_loc value marking state-level mobility rows.
	NationalParent string `koanf:"national_parent" validate:"required"`

	// RequirePopulation drops policy/cases rows whose state has no population figure.
	RequirePopulation bool `koanf:"require_population"`

	// LatestAfter selects the "latest snapshot" rows (date > LatestAfter).
	LatestAfter string `koanf:"latest_after" validate:"required,datetime=2006-01-02"`

	// SplitDate separates training rows (date < SplitDate) from test rows.
	SplitDate string `koanf:"split_date" validate:"required,datetime=2006-01-02"`

	// Timeout bounds one complete pipeline run.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// OutliersConfig replaces hard-coded outlier removal with explicit settings.
type OutliersConfig struct {
	// ExcludeCounties are county names removed from the county m50 aggregate.
	ExcludeCounties []string `koanf:"exclude_counties"`

	// MaxM50Index excludes rows whose m50_index is above it. 0 disables the check.
	MaxM50Index float64 `koanf:"max_m50_index" validate:"gte=0"`
}

// ModelConfig holds the regression settings shared by both models.
type ModelConfig struct {
	// Solver is "elasticnet" (coordinate descent) or "ols" (ordinary least squares).
	Solver          string  `koanf:"solver" validate:"oneof=elasticnet ols"`
	RegParam        float64 `koanf:"reg_param" validate:"gte=0"`
	ElasticNetParam float64 `koanf:"elastic_net_param" validate:"gte=0,lte=1"`
	MaxIter         int     `koanf:"max_iter" validate:"min=1"`
	Tolerance       float64 `koanf:"tolerance" validate:"gt=0"`

	// SamplePredictions is the number of test predictions copied into the report.
	SamplePredictions int `koanf:"sample_predictions" validate:"gte=0"`
}

// HistoryConfig controls the BadgerDB run ledger.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`

	// Retain is the number of runs kept by the serve command's maintenance
	// loop. 0 keeps every run.
	Retain int `koanf:"retain" validate:"gte=0"`

	// MaintenanceInterval is how often the ledger is pruned and garbage collected.
	MaintenanceInterval time.Duration `koanf:"maintenance_interval" validate:"gt=0"`
}

// ServerConfig holds settings for the `serve` command.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RunOnStartup    bool          `koanf:"run_on_startup"`

	// RunInterval schedules a pipeline run every interval. 0 disables scheduling.
	RunInterval time.Duration `koanf:"run_interval" validate:"gte=0"`

	// CORSOrigins lists allowed browser origins. Empty disables cross-origin access.
	CORSOrigins []string `koanf:"cors_origins"`

	// TriggerRateLimit caps POST /api/v1/runs per client IP per minute. 0 disables the limit.
	TriggerRateLimit int `koanf:"trigger_rate_limit" validate:"gte=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: console)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// LatestAfterDate parses Pipeline.LatestAfter.
func (p PipelineConfig) LatestAfterDate() (time.Time, error) {
	return time.Parse(DateLayout, p.LatestAfter)
}

// SplitDateTime parses Pipeline.SplitDate.
func (p PipelineConfig) SplitDateTime() (time.Time, error) {
	return time.Parse(DateLayout, p.SplitDate)
}

// Load reads configuration from defaults, the optional config file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
