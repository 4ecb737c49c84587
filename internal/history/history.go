// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

// Package history keeps a durable ledger of pipeline runs in BadgerDB.
//
// Each run report is stored as JSON under "run:<run id>". The ID of the most
// recently stored run is kept under "meta:latest".
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
)

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrLedgerClosed is returned by every operation after Close.
	ErrLedgerClosed = errors.New("ledger is closed")

	// ErrEmptyRunID is returned when storing a report without an ID.
	ErrEmptyRunID = errors.New("run ID is empty")
)

// Prefix keys for the ledger entries
const (
	prefixRun = "run:"
	keyLatest = "meta:latest"
)

// Ledger stores run reports.
type Ledger struct {
	db     *badger.DB
	path   string
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the ledger at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Compression = options.Snappy
	opts.MemTableSize = 16 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.NumCompactors = 2

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Debug().Str("path", path).Msg("Run ledger opened")
	return &Ledger{db: db, path: path}, nil
}

func (l *Ledger) checkOpen() error {
	if l.closed {
		return ErrLedgerClosed
	}
	return nil
}

// Put stores report and marks it as the latest run.
func (l *Ledger) Put(ctx context.Context, report *models.RunReport) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return err
	}
	if report.RunID == "" {
		return ErrEmptyRunID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixRun+report.RunID), data); err != nil {
			return err
		}
		return txn.Set([]byte(keyLatest), []byte(report.RunID))
	})
	if err != nil {
		return fmt.Errorf("write run %s: %w", report.RunID, err)
	}

	logging.Ctx(ctx).Debug().Str("status", report.Status).Msg("Run stored in ledger")
	return nil
}

// Get returns the report of one run.
func (l *Ledger) Get(ctx context.Context, runID string) (*models.RunReport, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var report models.RunReport
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixRun + runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}
	return &report, nil
}

// Latest returns the most recently stored run.
func (l *Ledger) Latest(ctx context.Context) (*models.RunReport, error) {
	l.mu.RLock()
	var runID string
	err := l.checkOpen()
	if err == nil {
		err = l.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(keyLatest))
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			runID = string(val)
			return err
		})
	}
	l.mu.RUnlock()

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return l.Get(ctx, runID)
}

// List returns run summaries, newest first. A positive limit caps the result.
func (l *Ledger) List(ctx context.Context, limit int) ([]models.RunSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var summaries []models.RunSummary
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRun)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// Check for context cancellation
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var report models.RunReport
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &report)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Ledger failed to unmarshal run")
				continue
			}
			summaries = append(summaries, report.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return newestFirst(summaries, limit), nil
}

// newestFirst orders summaries by start time, newest first, and applies limit.
func newestFirst(summaries []models.RunSummary, limit int) []models.RunSummary {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].StartedAt.Equal(summaries[j].StartedAt) {
			return summaries[i].RunID > summaries[j].RunID
		}
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// Prune deletes the oldest runs so that at most keep remain, ordered by
// start time. The latest marker is left pointing at a kept run. It returns
// the number of runs removed. A keep below 1 disables pruning.
func (l *Ledger) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, nil
	}
	summaries, err := l.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(summaries) <= keep {
		return 0, nil
	}
	stale := summaries[keep:]

	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return 0, err
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		latest := ""
		if item, err := txn.Get([]byte(keyLatest)); err == nil {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			latest = string(val)
		}
		for _, s := range stale {
			if err := txn.Delete([]byte(prefixRun + s.RunID)); err != nil {
				return err
			}
			if s.RunID == latest {
				if err := txn.Set([]byte(keyLatest), []byte(summaries[0].RunID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}

	logging.Ctx(ctx).Info().Int("removed", len(stale)).Int("kept", keep).Msg("Run ledger pruned")
	return len(stale), nil
}

// RunGC reclaims value log space until BadgerDB reports nothing left to rewrite.
func (l *Ledger) RunGC(discardRatio float64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkOpen(); err != nil {
		return err
	}

	for {
		err := l.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the underlying database. Further calls return ErrLedgerClosed.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Debug().Str("path", l.path).Msg("Run ledger closed")
	return nil
}
