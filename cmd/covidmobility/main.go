// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

// Package main is the covidmobility command line.
//
// covidmobility joins COVID-19 case counts with mobility and social
// distancing policy data, writes every stage as Parquet, and fits two
// regression models that predict daily cases.
//
// # Commands
//
//	covidmobility run      # one pipeline run, prints the report tables
//	covidmobility serve    # HTTP API, scheduled runs, ledger maintenance
//	covidmobility history  # lists runs stored in the ledger
//	covidmobility version
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (INPUT_DIR, OUTPUT_DIR, SPLIT_DATE, ...)
//   - Config file (--config, or config.yaml in the working directory)
//   - Built-in defaults
//
// # Signal Handling
//
// serve shuts down gracefully on SIGINT and SIGTERM: the HTTP server drains,
// and an in-flight background run is canceled and recorded as failed.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/covidmobility/internal/config"
	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// memoryRuns is the capacity of the in-memory store used when the ledger is disabled.
const memoryRuns = 100

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "covidmobility",
		Short:         "COVID-19 mobility and social distancing analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		logging.Init(logging.Config{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			Caller:    cfg.Logging.Caller,
			Timestamp: true,
		})
		return cfg, nil
	}

	root.AddCommand(
		newRunCommand(load),
		newServeCommand(load),
		newHistoryCommand(load),
		newVersionCommand(),
	)
	return root
}

// configLoader loads the configuration and initializes logging.
type configLoader func() (*config.Config, error)

// openStore opens the BadgerDB ledger, or an in-memory store when the ledger is disabled.
// The Ledger return value is nil in the in-memory case.
func openStore(cfg *config.HistoryConfig) (history.Store, *history.Ledger, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Run ledger disabled, keeping runs in memory")
		return history.NewMemory(memoryRuns), nil, nil
	}
	ledger, err := history.Open(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	return ledger, ledger, nil
}

func closeStore(store history.Store) {
	if err := store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing run ledger")
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "covidmobility %s\n", version)
		},
	}
}
