// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/covidmobility/internal/pipeline"
	"github.com/tomtom215/covidmobility/internal/report"
)

func newRunCommand(load configLoader) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the report",
		Long: `
Ingests the five input CSV files, cleanses and joins them, builds the
aggregates and the ML table, fits both regression models and prints the
report tables. Snapshots and report.json are written to the output directory.
A failed run exits non-zero after its report is printed.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, _, err := openStore(&cfg.History)
			if err != nil {
				return err
			}
			defer closeStore(store)

			rep, runErr := pipeline.New(cfg, store).Run(ctx)
			if rep != nil && !quiet {
				report.Render(cmd.OutOrStdout(), rep)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the report tables")
	return cmd
}
