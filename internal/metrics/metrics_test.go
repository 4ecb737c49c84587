// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/covidmobility/internal/models"
)

// TestRecordStage tests stage metric recording
func TestRecordStage(t *testing.T) {
	tests := []struct {
		name     string
		stage    string
		duration time.Duration
		err      error
	}{
		{
			name:     "successful ingest",
			stage:    "ingest",
			duration: 2 * time.Second,
		},
		{
			name:     "failed cleanse with short error",
			stage:    "cleanse",
			duration: 10 * time.Millisecond,
			err:      errors.New("snapshot missing"),
		},
		{
			name:     "failed join with long error - should truncate to 50 chars",
			stage:    "join",
			duration: 50 * time.Millisecond,
			err:      errors.New("this is a very long error message that exceeds fifty characters and should be truncated properly"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.CollectAndCount(StageDuration)
			RecordStage(tt.stage, tt.duration, tt.err)
			if after := testutil.CollectAndCount(StageDuration); after < before {
				t.Errorf("histogram series shrank: %d -> %d", before, after)
			}

			if tt.err != nil {
				errorType := tt.err.Error()
				if len(errorType) > 50 {
					errorType = errorType[:50]
				}
				if got := testutil.ToFloat64(StageErrors.WithLabelValues(tt.stage, errorType)); got < 1 {
					t.Errorf("StageErrors(%s) = %v, want >= 1", tt.stage, got)
				}
			}
		})
	}
}

func TestRecordTableCountsAndJoins(t *testing.T) {
	RecordTableCounts("cleanse", []models.TableCount{{Table: "cases_and_deaths", Rows: 8}})
	if got := testutil.ToFloat64(TableRows.WithLabelValues("cleanse", "cases_and_deaths")); got != 8 {
		t.Errorf("TableRows = %v, want 8", got)
	}

	RecordJoinStats([]models.JoinStat{
		{Name: "state_level_mobility", Kind: models.JoinRightOuter, Rows: 7, InnerRows: 6},
		{Name: "combined", Kind: models.JoinInner, Rows: 6, InnerRows: 6},
	})
	if got := testutil.ToFloat64(JoinOuterOnlyRows.WithLabelValues("state_level_mobility")); got != 1 {
		t.Errorf("outer-only rows = %v, want 1", got)
	}
	if got := testutil.ToFloat64(TableRows.WithLabelValues("join", "combined")); got != 6 {
		t.Errorf("combined rows = %v, want 6", got)
	}
}

func TestRecordModel(t *testing.T) {
	RecordModel(&models.ModelReport{
		Name:         "mobility_policy",
		Train:        models.Metrics{RMSE: 12, R2: 0.8},
		Test:         models.Metrics{RMSE: 30, R2: 0.4},
		SkippedTrain: 2,
	})

	checks := map[string]float64{
		"r2 train":   testutil.ToFloat64(ModelR2.WithLabelValues("mobility_policy", "train")),
		"r2 test":    testutil.ToFloat64(ModelR2.WithLabelValues("mobility_policy", "test")),
		"rmse test":  testutil.ToFloat64(ModelRMSE.WithLabelValues("mobility_policy", "test")),
		"skip train": testutil.ToFloat64(ModelSkippedRows.WithLabelValues("mobility_policy", "train")),
	}
	want := map[string]float64{"r2 train": 0.8, "r2 test": 0.4, "rmse test": 30, "skip train": 2}
	for k, v := range want {
		if checks[k] != v {
			t.Errorf("%s = %v, want %v", k, checks[k], v)
		}
	}
}

func TestRecordRun(t *testing.T) {
	before := testutil.ToFloat64(PipelineRuns.WithLabelValues(models.RunStatusSucceeded))
	RecordRun(models.RunStatusSucceeded)
	if got := testutil.ToFloat64(PipelineRuns.WithLabelValues(models.RunStatusSucceeded)); got != before+1 {
		t.Errorf("succeeded runs = %v, want %v", got, before+1)
	}
	if testutil.ToFloat64(PipelineLastSuccess) == 0 {
		t.Error("PipelineLastSuccess not set")
	}
}

// TestConcurrentMetricRecording tests thread safety of metric operations
func TestConcurrentMetricRecording(t *testing.T) {
	const goroutines = 20
	var wg sync.WaitGroup

	start := testutil.ToFloat64(APIActiveRequests)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			TrackActiveRequest(true)
			RecordAPIRequest("GET", "/api/v1/runs", "200", time.Millisecond)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Errorf("active requests = %v, want %v", got, start)
	}
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/runs", "200")); got < goroutines {
		t.Errorf("requests = %v, want >= %d", got, goroutines)
	}
}

func TestWriteToTextfile(t *testing.T) {
	SetAppInfo("test")
	path := filepath.Join(t.TempDir(), "nested", "covidmobility.prom")

	if err := WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `app_info{version="test"} 1`) {
		t.Errorf("textfile missing app_info:\n%s", data)
	}
}
