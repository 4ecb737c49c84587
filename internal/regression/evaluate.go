// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"context"
	"fmt"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
)

// Spec names a model and its columns.
type Spec struct {
	Name     string
	Features []string
	Label    string
}

var (
	// ModelA predicts cases from mobility and policy features.
	ModelA = Spec{
		Name: "mobility_policy",
		Features: []string{
			models.ColM50,
			models.ColM50Index,
			models.ColLabelReligiousRest,
			models.ColLabelCurrRest,
		},
		Label: models.ColCases,
	}

	// ModelB adds the same-day case and fatality counts to ModelA.
	ModelB = Spec{
		Name: "mobility_policy_counts",
		Features: []string{
			models.ColM50,
			models.ColM50Index,
			models.ColLabelReligiousRest,
			models.ColLabelCurrRest,
			models.ColCases,
			models.ColFatalities,
		},
		Label: models.ColCases,
	}
)

// Specs returns the models fitted by every run, in report order.
func Specs() []Spec {
	return []Spec{ModelA, ModelB}
}

// Evaluate fits spec on the training rows of split, scores it on both sides
// and returns the report. At most samples test predictions are kept.
func Evaluate(ctx context.Context, spec Spec, split *models.Split, cfg Config, samples int) (*models.ModelReport, error) {
	train := NewDataset(split.Train, spec.Features, spec.Label)
	test := NewDataset(split.Test, spec.Features, spec.Label)

	model, err := Fit(ctx, train, cfg)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}

	report := &models.ModelReport{
		Name:         spec.Name,
		Solver:       model.Solver,
		Label:        spec.Label,
		Features:     spec.Features,
		Coefficients: make([]models.Coefficient, len(spec.Features)),
		Intercept:    model.Intercept,
		Iterations:   model.Iterations,
		Converged:    model.Converged,
		TrainRows:    train.Len(),
		TestRows:     test.Len(),
		SkippedTrain: train.Skipped,
		SkippedTest:  test.Skipped,
		Train:        Score(train.Y, model.PredictAll(train.X)),
		Summary:      Describe(train),
	}
	for j, f := range spec.Features {
		report.Coefficients[j] = models.Coefficient{Feature: f, Value: model.Weights[j]}
	}

	if test.Len() > 0 {
		predicted := model.PredictAll(test.X)
		report.Test = Score(test.Y, predicted)

		n := min(samples, test.Len())
		report.Predictions = make([]models.Prediction, 0, n)
		for i := 0; i < n; i++ {
			report.Predictions = append(report.Predictions, models.Prediction{
				State:     test.Rows[i].State,
				Date:      test.Rows[i].Date,
				Actual:    test.Y[i],
				Predicted: predicted[i],
			})
		}
	}

	logging.Ctx(ctx).Info().
		Str("model", spec.Name).
		Str("solver", model.Solver).
		Int("train_rows", report.TrainRows).
		Int("test_rows", report.TestRows).
		Int("skipped", report.SkippedTrain+report.SkippedTest).
		Bool("converged", model.Converged).
		Float64("train_rmse", report.Train.RMSE).
		Float64("test_rmse", report.Test.RMSE).
		Float64("test_r2", report.Test.R2).
		Msg("Model evaluated")

	return report, nil
}
