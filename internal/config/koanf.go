// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/covidmobility/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config reproducing the reference notebook run.
func defaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Dir: "./data",
		},
		Output: OutputConfig{
			Dir:        "./output",
			ReportFile: "report.json",
		},
		Database: DatabaseConfig{
			Path:      ":memory:",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Pipeline: PipelineConfig{
			Country:           "US",
			NationalParent:    "United States",
			RequirePopulation: true,
			LatestAfter:       "2020-04-27",
			SplitDate:         "2020-04-22",
			Timeout:           10 * time.Minute,
		},
		Outliers: OutliersConfig{
			ExcludeCounties: []string{"Pocahontas County"},
			MaxM50Index:     0,
		},
		Model: ModelConfig{
			Solver:            SolverElasticNet,
			RegParam:          0.3,
			ElasticNetParam:   0.8,
			MaxIter:           10,
			Tolerance:         1e-6,
			SamplePredictions: 20,
		},
		History: HistoryConfig{
			Enabled:             true,
			Path:                "./output/history",
			Retain:              0,
			MaintenanceInterval: 30 * time.Minute,
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8478,
			Timeout:          30 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			RunOnStartup:     false,
			RunInterval:      0,
			CORSOrigins:      []string{},
			TriggerRateLimit: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
//
// Loading order (later sources override earlier ones):
//  1. Struct defaults
//  2. Config file (if present)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile loads configuration with an explicit config file, as passed by --config.
// An empty path falls back to the default search.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return LoadWithKoanf()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// INPUT_DIR -> input.dir, MODEL_REG_PARAM -> model.reg_param
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"outliers.exclude_counties",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices. A set-but-empty
// variable clears the list, so OUTLIER_EXCLUDE_COUNTIES= disables the exclusion.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		switch val.(type) {
		case []interface{}, []string:
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}
		trimmed := make([]string, 0)
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"input_dir": "input.dir",

	"output_dir":       "output.dir",
	"report_file":      "output.report_file",
	"metrics_textfile": "output.metrics_textfile",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"pipeline_country":   "pipeline.country",
	"national_parent":    "pipeline.national_parent",
	"require_population": "pipeline.require_population",
	"latest_after":       "pipeline.latest_after",
	"split_date":         "pipeline.split_date",
	"pipeline_timeout":   "pipeline.timeout",

	"outlier_exclude_counties": "outliers.exclude_counties",
	"outlier_max_m50_index":    "outliers.max_m50_index",

	"model_solver":             "model.solver",
	"model_reg_param":          "model.reg_param",
	"model_elastic_net_param":  "model.elastic_net_param",
	"model_max_iter":           "model.max_iter",
	"model_tolerance":          "model.tolerance",
	"model_sample_predictions": "model.sample_predictions",

	"history_enabled": "history.enabled",
	"history_path":    "history.path",
	"history_retain":  "history.retain",

	"history_maintenance_interval": "history.maintenance_interval",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"run_on_startup":        "server.run_on_startup",
	"run_interval":          "server.run_interval",
	"cors_origins":          "server.cors_origins",
	"trigger_rate_limit":    "server.trigger_rate_limit",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - INPUT_DIR -> input.dir
//   - DUCKDB_PATH -> database.path
//   - MODEL_REG_PARAM -> model.reg_param
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables never leak into config.
	return ""
}
