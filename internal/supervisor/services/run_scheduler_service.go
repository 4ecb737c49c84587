// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
	"github.com/tomtom215/covidmobility/internal/pipeline"
)

// PipelineRunner runs the pipeline once.
type PipelineRunner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

// RunSchedulerService runs the pipeline on startup and then every interval.
//
// Run failures are logged, not returned: a failed run is recorded in the
// ledger and the next tick tries again. Serve returns suture.ErrDoNotRestart
// when there is nothing left to schedule.
type RunSchedulerService struct {
	runner     PipelineRunner
	interval   time.Duration
	runOnStart bool
	name       string
}

// NewRunSchedulerService creates a scheduler. An interval of 0 disables the
// ticker, leaving only the optional startup run.
func NewRunSchedulerService(runner PipelineRunner, interval time.Duration, runOnStart bool) *RunSchedulerService {
	return &RunSchedulerService{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		name:       "run-scheduler",
	}
}

// Serve implements suture.Service.
func (s *RunSchedulerService) Serve(ctx context.Context) error {
	if s.runOnStart {
		s.runOnce(ctx, "startup")
	}
	if s.interval <= 0 {
		return suture.ErrDoNotRestart
	}

	logging.Info().Dur("interval", s.interval).Msg("Pipeline run scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, "schedule")
		}
	}
}

func (s *RunSchedulerService) runOnce(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	rep, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		logging.Info().Str("trigger", trigger).Msg("Scheduled run skipped, a run is already in progress")
	case err != nil:
		ev := logging.Warn().Err(err).Str("trigger", trigger)
		if rep != nil {
			ev = ev.Str("run_id", rep.RunID)
		}
		ev.Msg("Scheduled pipeline run failed")
	default:
		logging.Info().Str("trigger", trigger).Str("run_id", rep.RunID).Msg("Scheduled pipeline run finished")
	}
}

// String implements fmt.Stringer.
func (s *RunSchedulerService) String() string {
	return s.name
}
