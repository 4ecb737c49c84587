// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/models"
	"github.com/tomtom215/covidmobility/internal/pipeline"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (*models.RunReport, error) {
	n := r.calls.Add(1)
	rep := &models.RunReport{RunID: "run-" + string(rune('0'+n))}
	if r.err != nil {
		return rep, r.err
	}
	return rep, nil
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

var (
	_ suture.Service   = (*RunSchedulerService)(nil)
	_ suture.Service   = (*LedgerMaintenanceService)(nil)
	_ LedgerMaintainer = (*history.Ledger)(nil)
	_ PipelineRunner   = (*pipeline.Runner)(nil)
)

func TestRunSchedulerStartupOnly(t *testing.T) {
	runner := &countingRunner{}
	svc := NewRunSchedulerService(runner, 0, true)

	err := svc.Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() error = %v, want ErrDoNotRestart", err)
	}
	if got := runner.calls.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
	if svc.String() != "run-scheduler" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestRunSchedulerDisabled(t *testing.T) {
	runner := &countingRunner{}
	err := NewRunSchedulerService(runner, 0, false).Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() error = %v, want ErrDoNotRestart", err)
	}
	if got := runner.calls.Load(); got != 0 {
		t.Errorf("runs = %d, want 0", got)
	}
}

func TestRunSchedulerTicks(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"successful runs", nil},
		{"failed runs keep the schedule", errors.New("ingest: input file missing")},
		{"busy runner", pipeline.ErrRunInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &countingRunner{err: tt.err}
			svc := NewRunSchedulerService(runner, 10*time.Millisecond, false)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			eventually(t, 2*time.Second, func() bool { return runner.calls.Load() >= 3 })
			cancel()

			select {
			case err := <-errCh:
				if !errors.Is(err, context.Canceled) {
					t.Errorf("Serve() error = %v, want context.Canceled", err)
				}
			case <-time.After(time.Second):
				t.Fatal("Serve did not return after cancellation")
			}
		})
	}
}

type fakeMaintainer struct {
	mu       sync.Mutex
	prunes   []int
	gcCalls  int
	pruneErr error
}

func (f *fakeMaintainer) Prune(_ context.Context, keep int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes = append(f.prunes, keep)
	return 0, f.pruneErr
}

func (f *fakeMaintainer) RunGC(float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gcCalls++
	return nil
}

func (f *fakeMaintainer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prunes), f.gcCalls
}

func TestLedgerMaintenanceDefaults(t *testing.T) {
	svc := NewLedgerMaintenanceService(&fakeMaintainer{}, 5, 0)
	if svc.interval != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", svc.interval)
	}
	if svc.String() != "ledger-maintenance" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestLedgerMaintenanceServe(t *testing.T) {
	t.Run("prunes and collects", func(t *testing.T) {
		ledger := &fakeMaintainer{pruneErr: errors.New("ledger is closed")}
		svc := NewLedgerMaintenanceService(ledger, 3, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		eventually(t, 2*time.Second, func() bool {
			_, gc := ledger.counts()
			return gc >= 2
		})
		cancel()
		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}

		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		for _, keep := range ledger.prunes {
			if keep != 3 {
				t.Errorf("Prune keep = %d, want 3", keep)
			}
		}
	})

	t.Run("retain 0 skips pruning", func(t *testing.T) {
		ledger := &fakeMaintainer{}
		svc := NewLedgerMaintenanceService(ledger, 0, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		eventually(t, 2*time.Second, func() bool {
			_, gc := ledger.counts()
			return gc >= 1
		})
		cancel()
		<-errCh

		if prunes, _ := ledger.counts(); prunes != 0 {
			t.Errorf("Prune calls = %d, want 0", prunes)
		}
	})
}
