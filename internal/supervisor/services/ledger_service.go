// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package services

import (
	"context"
	"time"

	"github.com/tomtom215/covidmobility/internal/logging"
)

// gcDiscardRatio is the value log discard ratio passed to BadgerDB GC.
const gcDiscardRatio = 0.5

// LedgerMaintainer is the maintenance subset of *history.Ledger.
type LedgerMaintainer interface {
	Prune(ctx context.Context, keep int) (int, error)
	RunGC(discardRatio float64) error
}

// LedgerMaintenanceService prunes the run ledger to retain runs and
// reclaims BadgerDB value log space every interval.
type LedgerMaintenanceService struct {
	ledger   LedgerMaintainer
	retain   int
	interval time.Duration
	name     string
}

// NewLedgerMaintenanceService creates the maintenance service. retain 0
// keeps every run; a non-positive interval becomes 30 minutes.
func NewLedgerMaintenanceService(ledger LedgerMaintainer, retain int, interval time.Duration) *LedgerMaintenanceService {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &LedgerMaintenanceService{
		ledger:   ledger,
		retain:   retain,
		interval: interval,
		name:     "ledger-maintenance",
	}
}

// Serve implements suture.Service.
func (s *LedgerMaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.maintain(ctx)
		}
	}
}

func (s *LedgerMaintenanceService) maintain(ctx context.Context) {
	if s.retain > 0 {
		if _, err := s.ledger.Prune(ctx, s.retain); err != nil {
			logging.Warn().Err(err).Msg("Run ledger prune failed")
		}
	}
	if err := s.ledger.RunGC(gcDiscardRatio); err != nil {
		logging.Warn().Err(err).Msg("Run ledger GC failed")
	}
}

// String implements fmt.Stringer.
func (s *LedgerMaintenanceService) String() string {
	return s.name
}
