// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package models

import "time"

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunReport is everything one pipeline run produced. It is written to
// report.json, stored in the run ledger and served by the API.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`

	Settings RunSettings `json:"settings"`

	Ingested []TableCount `json:"ingested"`
	Cleansed []TableCount `json:"cleansed"`
	Joins    []JoinStat   `json:"joins"`

	PolicyAverages       []PolicyAverage      `json:"policy_averages"`
	PolicyAveragesLatest []PolicyAverage      `json:"policy_averages_latest"`
	StateDensities       []StateDensity       `json:"state_densities"`
	MobilityTypeChanges  []MobilityTypeChange `json:"mobility_type_changes"`
	StatewideMobility    []StatewideMobility  `json:"statewide_mobility"`
	CountyM50            []CountyM50          `json:"county_m50"`
	StatewideM50         []StatewideM50       `json:"statewide_m50"`

	Labels    []LabelEntry `json:"labels"`
	MLRows    int64        `json:"ml_rows"`
	TrainRows int          `json:"train_rows"`
	TestRows  int          `json:"test_rows"`

	Models []ModelReport `json:"models"`

	Stages []StageTiming `json:"stages"`
}

// RunSettings records the knobs a run used, so ledger entries are comparable.
type RunSettings struct {
	InputDir          string   `json:"input_dir"`
	OutputDir         string   `json:"output_dir"`
	Country           string   `json:"country"`
	LatestAfter       string   `json:"latest_after"`
	SplitDate         string   `json:"split_date"`
	RequirePopulation bool     `json:"require_population"`
	ExcludeCounties   []string `json:"exclude_counties"`
	MaxM50Index       float64  `json:"max_m50_index"`
	Solver            string   `json:"solver"`
	RegParam          float64  `json:"reg_param"`
	ElasticNetParam   float64  `json:"elastic_net_param"`
	MaxIter           int      `json:"max_iter"`
}

// StageTiming is the wall-clock duration of one pipeline stage.
type StageTiming struct {
	Stage      string `json:"stage"`
	DurationMS int64  `json:"duration_ms"`
}

// ModelReport describes one fitted regression.
type ModelReport struct {
	Name         string           `json:"name"`
	Solver       string           `json:"solver"`
	Label        string           `json:"label"`
	Features     []string         `json:"features"`
	Coefficients []Coefficient    `json:"coefficients"`
	Intercept    float64          `json:"intercept"`
	Iterations   int              `json:"iterations"`
	Converged    bool             `json:"converged"`
	TrainRows    int              `json:"train_rows"`
	TestRows     int              `json:"test_rows"`
	SkippedTrain int              `json:"skipped_train"`
	SkippedTest  int              `json:"skipped_test"`
	Train        Metrics          `json:"train"`
	Test         Metrics          `json:"test"`
	Summary      []FeatureSummary `json:"summary"`
	Predictions  []Prediction     `json:"predictions"`
}

// Coefficient is one named model weight on the original feature scale.
type Coefficient struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Metrics are regression quality measures. R2 is NaN-free: a constant
// label yields 0.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// FeatureSummary is the describe() row for one training column.
type FeatureSummary struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Prediction pairs a model output with the observed label for one test row.
type Prediction struct {
	State     string    `json:"state"`
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
}

// RunSummary is the compact ledger listing of a run.
type RunSummary struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMS int64              `json:"duration_ms"`
	TestR2     map[string]float64 `json:"test_r2,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Summary condenses the report for listings.
func (r *RunReport) Summary() RunSummary {
	s := RunSummary{
		RunID:      r.RunID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		DurationMS: r.DurationMS,
		Error:      r.Error,
	}
	if len(r.Models) > 0 {
		s.TestR2 = make(map[string]float64, len(r.Models))
		for _, m := range r.Models {
			s.TestR2[m.Name] = m.Test.R2
		}
	}
	return s
}
