// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"fmt"
	"math"

	sajari "github.com/sajari/regression"

	"github.com/tomtom215/covidmobility/internal/config"
)

// fitOLS fits an unregularized least-squares model.
func fitOLS(ds *Dataset) (*Model, error) {
	n, p := ds.X.Dims()
	if n < p+1 {
		return nil, fmt.Errorf("%w: %d rows for %d features", ErrSingular, n, p)
	}

	r := new(sajari.Regression)
	r.SetObserved(ds.Label)
	for j, f := range ds.Features {
		r.SetVar(j, f)
	}
	for i := 0; i < n; i++ {
		vars := make([]float64, p)
		copy(vars, ds.X.RawRowView(i))
		r.Train(sajari.DataPoint(ds.Y[i], vars))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("ols: %w", err)
	}

	model := &Model{
		Solver:     config.SolverOLS,
		Features:   ds.Features,
		Weights:    make([]float64, p),
		Intercept:  r.Coeff(0),
		Iterations: 1,
		Converged:  true,
	}
	for j := 0; j < p; j++ {
		model.Weights[j] = r.Coeff(j + 1)
	}

	if !finite(model.Intercept) || !finite(model.Weights...) {
		return nil, ErrSingular
	}
	return model, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
