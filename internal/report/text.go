// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"

	"github.com/tomtom215/covidmobility/internal/models"
)

const nullValue = "NULL"

func newTable(w io.Writer, title string, header table.Row) table.Writer {
	fmt.Fprintf(w, "\n%s\n", title)
	t := table.NewWriter()
	t.SetOutputMirror(w)

	// Don't uppercase the header and footer values.
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault

	t.AppendHeader(header)
	return t
}

func str(s *string) string {
	if s == nil {
		return nullValue
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return nullValue
	}
	return strconv.FormatFloat(*f, 'g', 6, 64)
}

func day(t time.Time) string {
	if t.IsZero() {
		return nullValue
	}
	return t.Format("2006-01-02")
}

// Render writes the human-readable tables of a run report.
func Render(w io.Writer, r *models.RunReport) {
	fmt.Fprintf(w, "Run %s: %s in %s\n", r.RunID, r.Status, time.Duration(r.DurationMS)*time.Millisecond)
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}

	renderCounts(w, "Ingested", r.Ingested)
	renderCounts(w, "Cleansed", r.Cleansed)
	renderJoins(w, r.Joins)
	renderPolicies(w, "Density by policy (all dates)", r.PolicyAverages)
	renderPolicies(w, "Density by policy (after "+r.Settings.LatestAfter+")", r.PolicyAveragesLatest)
	renderStates(w, r.StateDensities)
	renderMobilityTypeChanges(w, r.MobilityTypeChanges)
	renderStatewideMobility(w, r.StatewideMobility)
	renderCountyM50(w, r.CountyM50)
	renderStatewideM50(w, r.StatewideM50)
	renderLabels(w, r.Labels)
	for i := range r.Models {
		renderModel(w, &r.Models[i])
	}
	renderStages(w, r.Stages)
}

func renderCounts(w io.Writer, title string, counts []models.TableCount) {
	if len(counts) == 0 {
		return
	}
	t := newTable(w, title, table.Row{"table", "rows"})
	for _, c := range counts {
		t.AppendRow(table.Row{c.Table, c.Rows})
	}
	t.Render()
}

func renderJoins(w io.Writer, stats []models.JoinStat) {
	if len(stats) == 0 {
		return
	}
	t := newTable(w, "Joins", table.Row{"table", "kind", "rows", "inner rows", "outer only"})
	for _, s := range stats {
		t.AppendRow(table.Row{s.Name, s.Kind, s.Rows, s.InnerRows, s.OuterOnly()})
	}
	t.Render()
}

func renderPolicies(w io.Writer, title string, rows []models.PolicyAverage) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, title, table.Row{"current_restrictions", "avg cases density", "avg fatality density", "avg cases", "avg fatalities"})
	for _, p := range rows {
		t.AppendRow(table.Row{str(p.CurrentRestrictions), num(p.AvgCasesDensity), num(p.AvgFatalityDensity),
			num(p.AvgConfirmedCases), num(p.AvgFatalities)})
	}
	t.Render()
}

func renderStates(w io.Writer, rows []models.StateDensity) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, "Latest state densities", table.Row{"state", "date", "cases density", "fatality density", "current_restrictions"})
	for _, s := range rows {
		t.AppendRow(table.Row{s.State, day(s.Date), num(s.CasesDensity), num(s.FatalityDensity), str(s.CurrentRestrictions)})
	}
	t.Render()
}

func renderMobilityTypeChanges(w io.Writer, rows []models.MobilityTypeChange) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, "Mobility change by county and type", table.Row{"state", "county", "mobility_type",
		"current_restrictions", "avg mobility change", "avg cases density", "avg fatality density"})
	for _, c := range rows {
		t.AppendRow(table.Row{c.State, c.County, str(c.MobilityType), str(c.CurrentRestrictions),
			num(c.AvgMobilityChange), num(c.AvgCasesDensity), num(c.AvgFatalityDensity)})
	}
	t.Render()
}

func renderStatewideMobility(w io.Writer, rows []models.StatewideMobility) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, "Statewide mobility change", table.Row{"state", "current_restrictions", "avg mobility change", "avg cases density"})
	for _, s := range rows {
		t.AppendRow(table.Row{s.State, str(s.CurrentRestrictions), num(s.AvgMobilityChange), num(s.AvgCasesDensity)})
	}
	t.Render()
}

func renderCountyM50(w io.Writer, rows []models.CountyM50) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, "County m50", table.Row{"state", "county", "current_restrictions", "avg m50", "avg m50_index"})
	for _, c := range rows {
		t.AppendRow(table.Row{c.State, c.County, str(c.CurrentRestrictions), num(c.AvgM50), num(c.AvgM50Index)})
	}
	t.Render()
}

func renderStatewideM50(w io.Writer, rows []models.StatewideM50) {
	if len(rows) == 0 {
		return
	}
	t := newTable(w, "Statewide m50", table.Row{"state", "current_restrictions", "avg m50", "avg m50_index", "avg cases density"})
	for _, s := range rows {
		t.AppendRow(table.Row{s.State, str(s.CurrentRestrictions), num(s.AvgM50), num(s.AvgM50Index), num(s.AvgCasesDensity)})
	}
	t.Render()
}

func renderLabels(w io.Writer, labels []models.LabelEntry) {
	if len(labels) == 0 {
		return
	}
	t := newTable(w, "Label encodings", table.Row{"column", "label", "index", "count"})
	for _, l := range labels {
		t.AppendRow(table.Row{l.Column, l.Label, l.Index, l.Count})
	}
	t.Render()
}

func renderModel(w io.Writer, m *models.ModelReport) {
	title := fmt.Sprintf("Model %s (%s, %d iterations, converged=%t)", m.Name, m.Solver, m.Iterations, m.Converged)
	t := newTable(w, title, table.Row{"feature", "coefficient"})
	for _, c := range m.Coefficients {
		t.AppendRow(table.Row{c.Feature, strconv.FormatFloat(c.Value, 'g', 6, 64)})
	}
	t.AppendFooter(table.Row{"intercept", strconv.FormatFloat(m.Intercept, 'g', 6, 64)})
	t.Render()

	t = newTable(w, "Model "+m.Name+" metrics", table.Row{"split", "rows", "skipped", "RMSE", "R2"})
	t.AppendRow(table.Row{"train", m.TrainRows, m.SkippedTrain, m.Train.RMSE, m.Train.R2})
	t.AppendRow(table.Row{"test", m.TestRows, m.SkippedTest, m.Test.RMSE, m.Test.R2})
	t.Render()

	if len(m.Summary) > 0 {
		t = newTable(w, "Model "+m.Name+" training summary", table.Row{"column", "count", "mean", "stddev", "min", "max"})
		for _, s := range m.Summary {
			t.AppendRow(table.Row{s.Name, s.Count, s.Mean, s.StdDev, s.Min, s.Max})
		}
		t.Render()
	}

	if len(m.Predictions) > 0 {
		t = newTable(w, "Model "+m.Name+" sample predictions", table.Row{"state", "date", "actual", "predicted"})
		for _, p := range m.Predictions {
			t.AppendRow(table.Row{p.State, day(p.Date), p.Actual, p.Predicted})
		}
		t.Render()
	}
}

func renderStages(w io.Writer, stages []models.StageTiming) {
	if len(stages) == 0 {
		return
	}
	t := newTable(w, "Stages", table.Row{"stage", "duration"})
	for _, s := range stages {
		t.AppendRow(table.Row{s.Stage, time.Duration(s.DurationMS) * time.Millisecond})
	}
	t.Render()
}

// RenderHistory writes a table of ledger entries.
func RenderHistory(w io.Writer, runs []models.RunSummary, modelNames []string) {
	header := table.Row{"run", "status", "started", "duration"}
	for _, n := range modelNames {
		header = append(header, n+" test R2")
	}
	header = append(header, "error")

	t := newTable(w, "Runs", header)
	for _, r := range runs {
		row := table.Row{r.RunID, r.Status, r.StartedAt.Format(time.RFC3339),
			time.Duration(r.DurationMS) * time.Millisecond}
		for _, n := range modelNames {
			if v, ok := r.TestR2[n]; ok {
				row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
			} else {
				row = append(row, nullValue)
			}
		}
		row = append(row, r.Error)
		t.AppendRow(row)
	}
	t.Render()
}
