// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

// Package pipeline runs the analysis end to end: ingest, cleanse, join,
// aggregate, feature engineering, split and model fitting.
//
// Every stage persists its output tables as Parquet under the output
// directory, so each run leaves this layout (overwritten by the next run):
//
//	<output>/raw/<dataset>.parquet
//	<output>/cleansed/<table>.parquet
//	<output>/joined/<table>.parquet
//	<output>/aggregates/<table>.parquet
//	<output>/ml/final_ml.parquet
//	<output>/report.json
//
// A Runner allows one run at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/covidmobility/internal/config"
	"github.com/tomtom215/covidmobility/internal/database"
	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/metrics"
	"github.com/tomtom215/covidmobility/internal/models"
	"github.com/tomtom215/covidmobility/internal/regression"
	"github.com/tomtom215/covidmobility/internal/report"
)

var (
	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")

	// ErrNoTrainingRows is returned when the split leaves no complete training row.
	ErrNoTrainingRows = regression.ErrNoTrainingRows
)

// Stage names, in execution order.
const (
	StageIngest    = "ingest"
	StageCleanse   = "cleanse"
	StageJoin      = "join"
	StageAggregate = "aggregate"
	StageFeatures  = "features"
	StageSplit     = "split"
	StageModel     = "model"
)

// Snapshot directories under the output directory.
const (
	dirRaw        = "raw"
	dirCleansed   = "cleansed"
	dirJoined     = "joined"
	dirAggregates = "aggregates"
	dirML         = "ml"
)

// Runner executes pipeline runs.
type Runner struct {
	cfg   *config.Config
	store history.Store

	running atomic.Bool

	mu   sync.RWMutex
	last *models.RunReport

	now func() time.Time
}

// New creates a Runner. store may be nil, in which case runs are not recorded.
func New(cfg *config.Config, store history.Store) *Runner {
	return &Runner{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Last returns the report of the most recent run of this Runner, or nil.
func (r *Runner) Last() *models.RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run executes one complete pipeline run.
//
// The returned report is non-nil whenever the run started, including failed
// runs; it has already been written to the report file and the run store.
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	runID := uuid.New().String()
	ctx = logging.ContextWithRunID(ctx, runID)
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Pipeline.Timeout)
	defer cancel()

	rep := &models.RunReport{
		RunID:     runID,
		Status:    models.RunStatusRunning,
		StartedAt: r.now().UTC(),
		Settings:  settings(r.cfg),
	}
	log := logging.Ctx(ctx)
	log.Info().
		Str("input_dir", r.cfg.Input.Dir).
		Str("output_dir", r.cfg.Output.Dir).
		Msg("Pipeline run started")

	err := r.execute(ctx, rep)

	rep.FinishedAt = r.now().UTC()
	rep.DurationMS = rep.FinishedAt.Sub(rep.StartedAt).Milliseconds()
	if err != nil {
		rep.Status = models.RunStatusFailed
		rep.Error = err.Error()
		log.Error().Err(err).Int64("duration_ms", rep.DurationMS).Msg("Pipeline run failed")
	} else {
		rep.Status = models.RunStatusSucceeded
		log.Info().Int64("duration_ms", rep.DurationMS).Msg("Pipeline run succeeded")
	}
	metrics.RecordRun(rep.Status)

	if ferr := r.finish(ctx, rep); ferr != nil && err == nil {
		err = ferr
	}

	r.mu.Lock()
	r.last = rep
	r.mu.Unlock()

	return rep, err
}

// stage times fn and records it in the report and the stage metrics.
func stage(ctx context.Context, rep *models.RunReport, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	metrics.RecordStage(name, elapsed, err)
	rep.Stages = append(rep.Stages, models.StageTiming{Stage: name, DurationMS: elapsed.Milliseconds()})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	logging.Ctx(ctx).Info().Str("stage", name).Dur("duration", elapsed).Msg("Stage completed")
	return nil
}

func (r *Runner) execute(ctx context.Context, rep *models.RunReport) error {
	cfg := r.cfg

	latestAfter, err := cfg.Pipeline.LatestAfterDate()
	if err != nil {
		return fmt.Errorf("invalid latest_after: %w", err)
	}
	splitDate, err := cfg.Pipeline.SplitDateTime()
	if err != nil {
		return fmt.Errorf("invalid split_date: %w", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Msg("Failed to close database")
		}
	}()

	out := cfg.Output.Dir
	rawDir := filepath.Join(out, dirRaw)

	err = stage(ctx, rep, StageIngest, func() error {
		counts, err := db.Ingest(ctx, cfg.Input.Dir)
		if err != nil {
			return err
		}
		rep.Ingested = counts
		metrics.RecordTableCounts(StageIngest, counts)
		return db.SnapshotRaw(ctx, rawDir)
	})
	if err != nil {
		return err
	}

	err = stage(ctx, rep, StageCleanse, func() error {
		counts, err := db.Cleanse(ctx, rawDir, database.CleanseOptions{Country: cfg.Pipeline.Country})
		if err != nil {
			return err
		}
		rep.Cleansed = counts
		metrics.RecordTableCounts(StageCleanse, counts)
		return db.SnapshotAll(ctx, filepath.Join(out, dirCleansed), database.CleansedTables()...)
	})
	if err != nil {
		return err
	}

	err = stage(ctx, rep, StageJoin, func() error {
		stats, err := db.Join(ctx, database.JoinOptions{
			NationalParent:    cfg.Pipeline.NationalParent,
			RequirePopulation: cfg.Pipeline.RequirePopulation,
		})
		if err != nil {
			return err
		}
		rep.Joins = stats
		metrics.RecordJoinStats(stats)
		return db.SnapshotAll(ctx, filepath.Join(out, dirJoined), database.JoinTables()...)
	})
	if err != nil {
		return err
	}

	err = stage(ctx, rep, StageAggregate, func() error {
		counts, err := db.BuildAggregates(ctx, database.AggregateOptions{
			ExcludeCounties: cfg.Outliers.ExcludeCounties,
			MaxM50Index:     cfg.Outliers.MaxM50Index,
		})
		if err != nil {
			return err
		}
		metrics.RecordTableCounts(StageAggregate, counts)
		if err := db.SnapshotAll(ctx, filepath.Join(out, dirAggregates), database.AggregateTables()...); err != nil {
			return err
		}
		return collectAggregates(ctx, db, rep, latestAfter)
	})
	if err != nil {
		return err
	}

	err = stage(ctx, rep, StageFeatures, func() error {
		n, err := db.BuildFeatures(ctx, filepath.Join(out, dirML))
		if err != nil {
			return err
		}
		rep.MLRows = n
		metrics.RecordTableCounts(StageFeatures, []models.TableCount{{Table: database.TableFinalML, Rows: n}})
		rep.Labels, err = db.Labels(ctx)
		return err
	})
	if err != nil {
		return err
	}

	var split *models.Split
	err = stage(ctx, rep, StageSplit, func() error {
		split, err = db.Split(ctx, splitDate)
		if err != nil {
			return err
		}
		rep.TrainRows = len(split.Train)
		rep.TestRows = len(split.Test)
		return nil
	})
	if err != nil {
		return err
	}

	return stage(ctx, rep, StageModel, func() error {
		fitCfg := regression.FromModelConfig(cfg.Model)
		for _, spec := range regression.Specs() {
			m, err := regression.Evaluate(ctx, spec, split, fitCfg, cfg.Model.SamplePredictions)
			if err != nil {
				return err
			}
			metrics.RecordModel(m)
			rep.Models = append(rep.Models, *m)
		}
		return nil
	})
}

func collectAggregates(ctx context.Context, db *database.DB, rep *models.RunReport, latestAfter time.Time) error {
	var err error
	if rep.PolicyAverages, err = db.PolicyAverages(ctx, time.Time{}); err != nil {
		return err
	}
	if rep.PolicyAveragesLatest, err = db.PolicyAverages(ctx, latestAfter); err != nil {
		return err
	}
	if rep.StateDensities, err = db.StateDensities(ctx, latestAfter); err != nil {
		return err
	}
	if rep.MobilityTypeChanges, err = db.MobilityTypeChanges(ctx); err != nil {
		return err
	}
	if rep.StatewideMobility, err = db.StatewideMobility(ctx); err != nil {
		return err
	}
	if rep.CountyM50, err = db.CountyM50(ctx); err != nil {
		return err
	}
	rep.StatewideM50, err = db.StatewideM50(ctx)
	return err
}

// finish writes the report file, stores the run and exports metrics.
// Only a report file failure is returned; the others are logged.
func (r *Runner) finish(ctx context.Context, rep *models.RunReport) error {
	log := logging.Ctx(ctx)

	// The run context may have expired; bookkeeping still gets its own deadline.
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	path := filepath.Join(r.cfg.Output.Dir, r.cfg.Output.ReportFile)
	werr := report.WriteJSON(path, rep)
	if werr != nil {
		log.Error().Err(werr).Str("path", path).Msg("Failed to write run report")
		werr = fmt.Errorf("write report: %w", werr)
	} else {
		log.Info().Str("path", path).Msg("Run report written")
	}

	if r.store != nil {
		if err := r.store.Put(bctx, rep); err != nil {
			log.Warn().Err(err).Msg("Failed to record run in ledger")
		}
	}

	if r.cfg.Output.MetricsTextfile != "" {
		if err := metrics.WriteToTextfile(r.cfg.Output.MetricsTextfile); err != nil {
			log.Warn().Err(err).Msg("Failed to write metrics textfile")
		}
	}
	return werr
}

func settings(cfg *config.Config) models.RunSettings {
	return models.RunSettings{
		InputDir:          cfg.Input.Dir,
		OutputDir:         cfg.Output.Dir,
		Country:           cfg.Pipeline.Country,
		LatestAfter:       cfg.Pipeline.LatestAfter,
		SplitDate:         cfg.Pipeline.SplitDate,
		RequirePopulation: cfg.Pipeline.RequirePopulation,
		ExcludeCounties:   cfg.Outliers.ExcludeCounties,
		MaxM50Index:       cfg.Outliers.MaxM50Index,
		Solver:            cfg.Model.Solver,
		RegParam:          cfg.Model.RegParam,
		ElasticNetParam:   cfg.Model.ElasticNetParam,
		MaxIter:           cfg.Model.MaxIter,
	}
}
