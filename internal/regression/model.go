// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/covidmobility/internal/config"
)

// Model is a fitted linear model on the original feature scale.
type Model struct {
	Solver     string
	Features   []string
	Weights    []float64
	Intercept  float64
	Iterations int
	Converged  bool
}

// Fit trains a model on ds with the configured solver.
func Fit(ctx context.Context, ds *Dataset, cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, ErrNoTrainingRows
	}

	switch cfg.Solver {
	case config.SolverOLS:
		return fitOLS(ds)
	default:
		return fitElasticNet(ctx, ds, cfg)
	}
}

// Predict returns the model output for one feature vector.
func (m *Model) Predict(x []float64) float64 {
	y := m.Intercept
	for j, w := range m.Weights {
		y += w * x[j]
	}
	return y
}

// PredictAll returns X*w + b. A nil X yields nil.
func (m *Model) PredictAll(x *mat.Dense) []float64 {
	if x == nil {
		return nil
	}
	rows, cols := x.Dims()
	if cols != len(m.Weights) {
		panic(fmt.Sprintf("regression: %d columns for %d weights", cols, len(m.Weights)))
	}

	var out mat.VecDense
	out.MulVec(x, mat.NewVecDense(cols, m.Weights))
	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = out.AtVec(i) + m.Intercept
	}
	return pred
}
