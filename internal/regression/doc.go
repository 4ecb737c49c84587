// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

// Package regression fits the linear models that predict confirmed cases from
// mobility and policy features.
//
// # Solvers
//
// Two solvers are available:
//   - elasticnet: cyclic coordinate descent on standardized features and
//     label z = (y - mean(y)) / sd(y), minimizing
//     1/(2n) * ||z - Xb||^2 + (lambda/sd(y)) * (alpha * |b|_1 + (1-alpha)/2 * |b|_2^2).
//     Scaling lambda by sd(y) keeps the penalty on the label's original
//     scale, so large case counts are not shrunk harder than small ones.
//     Weights are mapped back to the original feature scale with an intercept.
//   - ols: unregularized least squares via github.com/sajari/regression.
//
// # Models
//
// ModelA uses mobility and policy features only. ModelB adds the same-day
// case and fatality counts. Both predict the "cases" column.
//
// # Usage
//
//	report, err := regression.Evaluate(ctx, regression.ModelA, split, regression.DefaultConfig(), 20)
//	if errors.Is(err, regression.ErrNoTrainingRows) {
//	    // nothing to fit
//	}
//
// Rows with a NULL feature or label are skipped and counted in the report.
package regression
