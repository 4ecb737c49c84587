// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/covidmobility/internal/models"
)

// RMSE returns the root mean squared error. Empty input yields 0.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// R2 returns the coefficient of determination. It is 0 for empty input and
// for a constant label, where the ratio is undefined.
func R2(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	r2 := stat.RSquaredFrom(predicted, actual, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return r2
}

// Score computes both metrics.
func Score(actual, predicted []float64) models.Metrics {
	return models.Metrics{
		RMSE: RMSE(actual, predicted),
		R2:   R2(actual, predicted),
	}
}

// Describe summarizes every feature column and the label of ds.
func Describe(ds *Dataset) []models.FeatureSummary {
	summary := make([]models.FeatureSummary, 0, len(ds.Features)+1)
	for j, name := range ds.Features {
		var col []float64
		if ds.X != nil {
			col = mat.Col(nil, j, ds.X)
		}
		summary = append(summary, describeColumn(name, col))
	}
	return append(summary, describeColumn(ds.Label, ds.Y))
}

func describeColumn(name string, values []float64) models.FeatureSummary {
	s := models.FeatureSummary{Name: name, Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean, s.StdDev = meanStd(values)
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	return s
}
