// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/covidmobility/internal/models"
)

func sampleReport() *models.RunReport {
	policy := "Stay at Home"
	density := 1.5e-5
	retail := "retail"
	change := -72.0
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.RunReport{
		RunID:      "3f1c",
		Status:     models.RunStatusSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		DurationMS: 3000,
		Settings:   models.RunSettings{LatestAfter: "2020-04-27"},
		Ingested:   []models.TableCount{{Table: "raw_cases_and_deaths", Rows: 10}},
		Joins: []models.JoinStat{
			{Name: "state_level_mobility", Kind: models.JoinRightOuter, Rows: 7, InnerRows: 6},
		},
		PolicyAverages: []models.PolicyAverage{
			{CurrentRestrictions: &policy, AvgCasesDensity: &density},
			{},
		},
		MobilityTypeChanges: []models.MobilityTypeChange{
			{State: "New York", County: "Kings County", MobilityType: &retail, CurrentRestrictions: &policy, AvgMobilityChange: &change},
		},
		Labels: []models.LabelEntry{{Column: "current_restrictions", Label: policy, Index: 0, Count: 3}},
		Models: []models.ModelReport{{
			Name:         "mobility_policy",
			Solver:       "elasticnet",
			Coefficients: []models.Coefficient{{Feature: "m50", Value: 12.5}},
			Intercept:    40,
			Train:        models.Metrics{RMSE: 1, R2: 0.9},
			Predictions: []models.Prediction{
				{State: "New York", Date: time.Date(2020, 4, 22, 0, 0, 0, 0, time.UTC), Actual: 300, Predicted: 280},
			},
		}},
		Stages: []models.StageTiming{{Stage: "ingest", DurationMS: 1200}},
	}
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	want := sampleReport()

	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Overwrite leaves no temp files behind.
	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("second WriteJSON() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("report dir has %d entries, want 1", len(entries))
	}
}

func TestReadJSONMissing(t *testing.T) {
	if _, err := ReadJSON(filepath.Join(t.TempDir(), "nope.json")); !os.IsNotExist(err) {
		t.Errorf("ReadJSON() error = %v, want not exist", err)
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, sampleReport())
	out := buf.String()

	for _, want := range []string{
		"Run 3f1c: succeeded in 3s",
		"raw_cases_and_deaths",
		"outer only",
		"Density by policy (after 2020-04-27)",
		"Stay at Home",
		"Mobility change by county and type",
		"Kings County",
		"-72",
		nullValue,
		"Model mobility_policy (elasticnet",
		"intercept",
		"2020-04-22",
		"ingest",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q", want)
		}
	}
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	runs := []models.RunSummary{
		{RunID: "a", Status: models.RunStatusSucceeded, TestR2: map[string]float64{"mobility_policy": 0.5}},
		{RunID: "b", Status: models.RunStatusFailed, Error: "input file missing"},
	}
	RenderHistory(&buf, runs, []string{"mobility_policy"})
	out := buf.String()

	for _, want := range []string{"mobility_policy test R2", "0.5000", "input file missing", nullValue} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderHistory() output missing %q", want)
		}
	}
}
