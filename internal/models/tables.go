// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package models

import "time"

// Join kinds recorded in JoinStat.Kind.
const (
	JoinInner      = "inner"
	JoinRightOuter = "right_outer"
)

// TableCount is the row count of one named table after a stage.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// JoinStat describes one step of the join pipeline.
//
// For outer joins InnerRows is the row count the equivalent inner join
// would produce; Rows-InnerRows rows exist only because of the outer side
// and carry NULLs in the columns of the other input.
type JoinStat struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Rows      int64  `json:"rows"`
	InnerRows int64  `json:"inner_rows"`
}

// OuterOnly returns the number of rows kept only by the outer side of the join.
func (j JoinStat) OuterOnly() int64 {
	if j.Kind != JoinRightOuter {
		return 0
	}
	return j.Rows - j.InnerRows
}

// PolicyAverage is the density average for one current-restriction policy.
// Nullable columns are pointers: a nil value is a SQL NULL.
type PolicyAverage struct {
	CurrentRestrictions *string  `json:"current_restrictions"`
	AvgCasesDensity     *float64 `json:"avg_cases_density"`
	AvgFatalityDensity  *float64 `json:"avg_fatality_density"`
	AvgConfirmedCases   *float64 `json:"avg_confirmed_cases"`
	AvgFatalities       *float64 `json:"avg_fatalities"`
}

// StateDensity is one state's density on the latest snapshot dates.
type StateDensity struct {
	State               string    `json:"state"`
	Date                time.Time `json:"date"`
	CasesDensity        *float64  `json:"cases_density"`
	FatalityDensity     *float64  `json:"fatality_density"`
	CurrentRestrictions *string   `json:"current_restrictions"`
	ConfirmedCases      *float64  `json:"confirmed_cases"`
	Fatalities          *float64  `json:"fatalities"`
}

// MobilityTypeChange is the average mobility change of one county and mobility type.
type MobilityTypeChange struct {
	State               string   `json:"state"`
	County              string   `json:"county"`
	MobilityType        *string  `json:"mobility_type"`
	CurrentRestrictions *string  `json:"current_restrictions"`
	AvgMobilityChange   *float64 `json:"avg_mobility_change"`
	AvgCasesDensity     *float64 `json:"avg_cases_density"`
	AvgFatalityDensity  *float64 `json:"avg_fatality_density"`
}

// StatewideMobility averages MobilityTypeChange rows per state.
type StatewideMobility struct {
	State               string   `json:"state"`
	CurrentRestrictions *string  `json:"current_restrictions"`
	AvgMobilityChange   *float64 `json:"avg_mobility_change"`
	AvgCasesDensity     *float64 `json:"avg_cases_density"`
	AvgFatalityDensity  *float64 `json:"avg_fatality_density"`
}

// CountyM50 is the average m50 of one county.
type CountyM50 struct {
	State               string   `json:"state"`
	County              string   `json:"county"`
	CurrentRestrictions *string  `json:"current_restrictions"`
	AvgM50              *float64 `json:"avg_m50"`
	AvgM50Index         *float64 `json:"avg_m50_index"`
	AvgCasesDensity     *float64 `json:"avg_cases_density"`
	AvgFatalityDensity  *float64 `json:"avg_fatality_density"`
}

// StatewideM50 averages CountyM50 rows per state.
type StatewideM50 struct {
	State               string   `json:"state"`
	CurrentRestrictions *string  `json:"current_restrictions"`
	AvgM50              *float64 `json:"avg_m50"`
	AvgM50Index         *float64 `json:"avg_m50_index"`
	AvgCasesDensity     *float64 `json:"avg_cases_density"`
	AvgFatalityDensity  *float64 `json:"avg_fatality_density"`
}

// Feature column names of the ML table.
const (
	ColM50                = "m50"
	ColM50Index           = "m50_index"
	ColLabelReligiousRest = "label_religious_rest"
	ColLabelCurrRest      = "label_curr_rest"
	ColCases              = "cases"
	ColFatalities         = "fatalities"
	ColCasesDensity       = "cases_density"
)

// MLRow is one row of the final ML table.
type MLRow struct {
	State              string     `json:"state"`
	Date               time.Time  `json:"date"`
	RestrictionEndDate *time.Time `json:"restriction_end_date"`
	M50                *float64   `json:"m50"`
	M50Index           *float64   `json:"m50_index"`
	LabelReligiousRest *float64   `json:"label_religious_rest"`
	LabelCurrRest      *float64   `json:"label_curr_rest"`
	Cases              *float64   `json:"cases"`
	Fatalities         *float64   `json:"fatalities"`
	CasesDensity       *float64   `json:"cases_density"`
}

// Value returns the named numeric column and whether it is non-NULL.
// Unknown column names report false.
func (r *MLRow) Value(column string) (float64, bool) {
	var v *float64
	switch column {
	case ColM50:
		v = r.M50
	case ColM50Index:
		v = r.M50Index
	case ColLabelReligiousRest:
		v = r.LabelReligiousRest
	case ColLabelCurrRest:
		v = r.LabelCurrRest
	case ColCases:
		v = r.Cases
	case ColFatalities:
		v = r.Fatalities
	case ColCasesDensity:
		v = r.CasesDensity
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// LabelEntry maps one categorical value to its integer label.
type LabelEntry struct {
	Column string  `json:"column"`
	Label  string  `json:"label"`
	Index  float64 `json:"index"`
	Count  int64   `json:"count"`
}

// Split holds the time-based train/test partition of the ML table.
type Split struct {
	SplitDate time.Time `json:"split_date"`
	Train     []MLRow   `json:"-"`
	Test      []MLRow   `json:"-"`
	Undated   int64     `json:"undated"`
}
