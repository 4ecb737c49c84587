// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package regression

import (
	"errors"
	"fmt"

	"github.com/tomtom215/covidmobility/internal/config"
)

var (
	// ErrNoTrainingRows is returned when no training row has every feature and the label.
	ErrNoTrainingRows = errors.New("no complete training rows")

	// ErrSingular is returned by the ols solver when the design matrix is rank deficient.
	ErrSingular = errors.New("design matrix is singular")
)

// Config contains the fit parameters.
type Config struct {
	// Solver is config.SolverElasticNet or config.SolverOLS.
	Solver string

	// RegParam is the overall regularization strength (lambda).
	RegParam float64

	// ElasticNetParam mixes L1 and L2 penalties: 1 is lasso, 0 is ridge.
	ElasticNetParam float64

	// MaxIter is the maximum number of coordinate descent sweeps.
	MaxIter int

	// Tolerance stops the descent once no standardized weight moves more than this.
	Tolerance float64
}

// DefaultConfig returns the reference fit parameters.
func DefaultConfig() Config {
	return Config{
		Solver:          config.SolverElasticNet,
		RegParam:        0.3,
		ElasticNetParam: 0.8,
		MaxIter:         10,
		Tolerance:       1e-6,
	}
}

// FromModelConfig converts the application model settings.
func FromModelConfig(m config.ModelConfig) Config {
	return Config{
		Solver:          m.Solver,
		RegParam:        m.RegParam,
		ElasticNetParam: m.ElasticNetParam,
		MaxIter:         m.MaxIter,
		Tolerance:       m.Tolerance,
	}
}

func (c Config) validate() error {
	switch c.Solver {
	case config.SolverElasticNet, config.SolverOLS:
	default:
		return fmt.Errorf("unknown solver %q", c.Solver)
	}
	if c.RegParam < 0 {
		return fmt.Errorf("reg param must be >= 0, got %v", c.RegParam)
	}
	if c.ElasticNetParam < 0 || c.ElasticNetParam > 1 {
		return fmt.Errorf("elastic net param must be in [0, 1], got %v", c.ElasticNetParam)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("max iter must be >= 1, got %d", c.MaxIter)
	}
	return nil
}
