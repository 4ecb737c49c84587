// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestJoinStatOuterOnly(t *testing.T) {
	tests := []struct {
		name string
		stat JoinStat
		want int64
	}{
		{"outer with extras", JoinStat{Kind: JoinRightOuter, Rows: 7, InnerRows: 6}, 1},
		{"outer exact", JoinStat{Kind: JoinRightOuter, Rows: 6, InnerRows: 6}, 0},
		{"inner", JoinStat{Kind: JoinInner, Rows: 6, InnerRows: 6}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stat.OuterOnly(); got != tt.want {
				t.Errorf("OuterOnly() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMLRowValue(t *testing.T) {
	m50, cases := 1.5, 300.0
	row := MLRow{M50: &m50, Cases: &cases}

	tests := []struct {
		column string
		want   float64
		ok     bool
	}{
		{ColM50, 1.5, true},
		{ColCases, 300, true},
		{ColM50Index, 0, false},
		{ColFatalities, 0, false},
		{"unknown", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, ok := row.Value(tt.column)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Value(%q) = %v, %v; want %v, %v", tt.column, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRunReportSummary(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &RunReport{
		RunID:      "run-1",
		Status:     RunStatusSucceeded,
		StartedAt:  started,
		DurationMS: 1500,
		Models: []ModelReport{
			{Name: "a", Test: Metrics{R2: 0.5}},
			{Name: "b", Test: Metrics{R2: 0.9}},
		},
	}

	want := RunSummary{
		RunID:      "run-1",
		Status:     RunStatusSucceeded,
		StartedAt:  started,
		DurationMS: 1500,
		TestR2:     map[string]float64{"a": 0.5, "b": 0.9},
	}
	if diff := cmp.Diff(want, r.Summary()); diff != "" {
		t.Errorf("Summary() mismatch (-want +got):\n%s", diff)
	}

	failed := (&RunReport{RunID: "run-2", Status: RunStatusFailed, Error: "boom"}).Summary()
	if failed.TestR2 != nil || failed.Error != "boom" {
		t.Errorf("failed Summary() = %+v", failed)
	}
}
