// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/covidmobility/internal/models"
)

// Store is the run ledger interface shared by Ledger and Memory.
type Store interface {
	Put(ctx context.Context, report *models.RunReport) error
	Get(ctx context.Context, runID string) (*models.RunReport, error)
	Latest(ctx context.Context) (*models.RunReport, error)
	List(ctx context.Context, limit int) ([]models.RunSummary, error)
	Close() error
}

var (
	_ Store = (*Ledger)(nil)
	_ Store = (*Memory)(nil)
)

// Memory is a non-durable Store used when the ledger is disabled.
// It keeps at most capacity runs, dropping the oldest stored first.
type Memory struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	runs     map[string]*models.RunReport
}

// NewMemory creates a Memory store. A capacity below 1 keeps 100 runs.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 100
	}
	return &Memory{capacity: capacity, runs: make(map[string]*models.RunReport)}
}

// Put stores report and marks it as the latest run.
func (m *Memory) Put(_ context.Context, report *models.RunReport) error {
	if report.RunID == "" {
		return ErrEmptyRunID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[report.RunID]; ok {
		for i, id := range m.order {
			if id == report.RunID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.order = append(m.order, report.RunID)
	m.runs[report.RunID] = report

	for len(m.order) > m.capacity {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// Get returns the report of one run.
func (m *Memory) Get(_ context.Context, runID string) (*models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, nil
}

// Latest returns the most recently stored run.
func (m *Memory) Latest(_ context.Context) (*models.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return nil, ErrRunNotFound
	}
	return m.runs[m.order[len(m.order)-1]], nil
}

// List returns run summaries, newest first. A positive limit caps the result.
func (m *Memory) List(_ context.Context, limit int) ([]models.RunSummary, error) {
	m.mu.RLock()
	summaries := make([]models.RunSummary, 0, len(m.runs))
	for _, r := range m.runs {
		summaries = append(summaries, r.Summary())
	}
	m.mu.RUnlock()

	return newestFirst(summaries, limit), nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
