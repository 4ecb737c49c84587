// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package config

import (
	"fmt"

	"github.com/tomtom215/covidmobility/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Tag rules run first; cross-field rules follow.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validatePipeline(); err != nil {
		return err
	}

	return c.validateHistory()
}

// validatePipeline checks the date relationships that tags cannot express.
func (c *Config) validatePipeline() error {
	latest, err := c.Pipeline.LatestAfterDate()
	if err != nil {
		return fmt.Errorf("LATEST_AFTER: %w", err)
	}
	split, err := c.Pipeline.SplitDateTime()
	if err != nil {
		return fmt.Errorf("SPLIT_DATE: %w", err)
	}
	if latest.Year() < 2000 || split.Year() < 2000 {
		return fmt.Errorf("pipeline dates must be after 2000-01-01, got latest_after=%s split_date=%s",
			c.Pipeline.LatestAfter, c.Pipeline.SplitDate)
	}
	return nil
}

// validateHistory requires a ledger path when the ledger is enabled.
func (c *Config) validateHistory() error {
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("HISTORY_PATH is required when HISTORY_ENABLED=true")
	}
	return nil
}
