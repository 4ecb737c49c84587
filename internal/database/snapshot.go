// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tomtom215/covidmobility/internal/logging"
)

// SnapshotPath returns the Parquet file of table inside dir.
func SnapshotPath(dir, table string) string {
	return filepath.Join(dir, table+".parquet")
}

// Snapshot writes table to a ZSTD-compressed Parquet file, replacing any
// earlier file at path.
func (db *DB) Snapshot(ctx context.Context, table, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create snapshot directory for %s: %w", path, err)
	}

	query := fmt.Sprintf(`
		COPY %s TO %s (
			FORMAT PARQUET,
			COMPRESSION 'ZSTD'
		)`, quoteIdent(table), quoteLiteral(path))

	if err := db.exec(ctx, "snapshot "+table, query); err != nil {
		return err
	}

	logging.Ctx(ctx).Debug().Str("table", table).Str("path", path).Msg("Snapshot written")
	return nil
}

// SnapshotAll writes each table to dir/<table>.parquet.
func (db *DB) SnapshotAll(ctx context.Context, dir string, tables ...string) error {
	for _, t := range tables {
		if err := db.Snapshot(ctx, t, SnapshotPath(dir, t)); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot (re)creates table from the Parquet file at path.
func (db *DB) LoadSnapshot(ctx context.Context, table, path string) error {
	if err := requireSnapshot(path); err != nil {
		return err
	}
	query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
		quoteIdent(table), quoteLiteral(path))
	return db.exec(ctx, "load snapshot "+table, query)
}

func requireSnapshot(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return nil
}
