// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/covidmobility/internal/api"
	"github.com/tomtom215/covidmobility/internal/config"
	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/metrics"
	"github.com/tomtom215/covidmobility/internal/pipeline"
	"github.com/tomtom215/covidmobility/internal/supervisor"
	"github.com/tomtom215/covidmobility/internal/supervisor/services"
)

func newServeCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the pipeline on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Str("input_dir", cfg.Input.Dir).
		Str("output_dir", cfg.Output.Dir).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting covidmobility server")
	metrics.SetAppInfo(version)

	store, ledger, err := openStore(&cfg.History)
	if err != nil {
		return err
	}
	defer closeStore(store)

	runner := pipeline.New(cfg, store)
	handler := api.NewHandler(ctx, runner, store, version)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, &cfg.Server),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	if cfg.Server.RunOnStartup || cfg.Server.RunInterval > 0 {
		tree.AddPipelineService(services.NewRunSchedulerService(runner, cfg.Server.RunInterval, cfg.Server.RunOnStartup))
		logging.Info().
			Bool("run_on_startup", cfg.Server.RunOnStartup).
			Dur("interval", cfg.Server.RunInterval).
			Msg("Run scheduler service added")
	}
	if ledger != nil {
		tree.AddPipelineService(services.NewLedgerMaintenanceService(ledger, cfg.History.Retain, cfg.History.MaintenanceInterval))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
		serveErr = err
	}

	// Background runs triggered over HTTP finish before the store closes.
	handler.Wait()

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Server stopped gracefully")
	return serveErr
}
