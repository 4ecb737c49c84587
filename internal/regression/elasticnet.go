// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/covidmobility/internal/config"
)

// meanStd returns the mean and sample standard deviation of x.
// Fewer than two values have a standard deviation of 0.
func meanStd(x []float64) (mean, std float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	mean, std = stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// fitElasticNet runs cyclic coordinate descent.
//
// Each column and the label are centered and divided by their sample standard
// deviation. The penalty is divided by the label's standard deviation as well,
// so lambda is expressed on the label's original scale. A constant column keeps
// a zero weight; a constant label yields a model that predicts its value.
func fitElasticNet(ctx context.Context, ds *Dataset, cfg Config) (*Model, error) {
	n, p := ds.X.Dims()
	nf := float64(n)

	model := &Model{
		Solver:   config.SolverElasticNet,
		Features: ds.Features,
		Weights:  make([]float64, p),
	}

	yMean, yStd := meanStd(ds.Y)
	if yStd == 0 {
		model.Intercept = yMean
		model.Converged = true
		return model, nil
	}

	// Standardized columns; nil marks a constant column.
	z := make([][]float64, p)
	xMean := make([]float64, p)
	xStd := make([]float64, p)
	scale := make([]float64, p)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, ds.X)
		xMean[j], xStd[j] = meanStd(col)
		if xStd[j] == 0 {
			continue
		}
		for i := range col {
			col[i] = (col[i] - xMean[j]) / xStd[j]
		}
		z[j] = col
		scale[j] = floats.Dot(col, col) / nf
	}

	residual := make([]float64, n)
	for i, y := range ds.Y {
		residual[i] = (y - yMean) / yStd
	}

	l1 := cfg.RegParam * cfg.ElasticNetParam / yStd
	l2 := cfg.RegParam * (1 - cfg.ElasticNetParam) / yStd
	beta := make([]float64, p)

	for iter := 1; iter <= cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if z[j] == nil {
				continue
			}
			rho := floats.Dot(z[j], residual)/nf + scale[j]*beta[j]
			next := softThreshold(rho, l1) / (scale[j] + l2)
			if delta := next - beta[j]; delta != 0 {
				floats.AddScaled(residual, -delta, z[j])
				maxDelta = math.Max(maxDelta, math.Abs(delta))
				beta[j] = next
			}
		}

		model.Iterations = iter
		if maxDelta < cfg.Tolerance {
			model.Converged = true
			break
		}
	}

	model.Intercept = yMean
	for j := 0; j < p; j++ {
		if z[j] == nil {
			continue
		}
		model.Weights[j] = beta[j] * yStd / xStd[j]
		model.Intercept -= model.Weights[j] * xMean[j]
	}
	return model, nil
}
