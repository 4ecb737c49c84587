// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/regression"
	"github.com/tomtom215/covidmobility/internal/report"
)

func newHistoryCommand(load configLoader) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List pipeline runs stored in the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run ledger is disabled (HISTORY_ENABLED=false)")
			}
			ledger, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer closeStore(ledger)

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if runID != "" {
				rep, err := ledger.Get(ctx, runID)
				if err != nil {
					return err
				}
				report.Render(out, rep)
				return nil
			}

			runs, err := ledger.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			names := make([]string, 0, len(regression.Specs()))
			for _, spec := range regression.Specs() {
				names = append(names, spec.Name)
			}
			report.RenderHistory(out, runs, names)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "print the full report of one run")
	return cmd
}
