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
	"strings"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
)

// Ingest loads every source CSV in dir into its raw_* table.
//
// Each column is read as text and converted with TRY_CAST, so a value that
// does not parse as the declared type becomes NULL and the row is kept.
// A missing file stops the ingest with ErrInputMissing.
func (db *DB) Ingest(ctx context.Context, dir string) ([]models.TableCount, error) {
	schemas := Schemas()

	// Check every file up front so a missing one fails before any load.
	for _, s := range schemas {
		path := filepath.Join(dir, s.File)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}

	counts := make([]models.TableCount, 0, len(schemas))
	for _, s := range schemas {
		path := filepath.Join(dir, s.File)
		if err := db.exec(ctx, "ingest "+s.Name, ingestQuery(s, path)); err != nil {
			return nil, err
		}

		n, err := db.CountRows(ctx, s.RawTable())
		if err != nil {
			return nil, err
		}
		logging.Ctx(ctx).Info().
			Str("table", s.RawTable()).
			Str("file", path).
			Int64("rows", n).
			Msg("Dataset ingested")
		counts = append(counts, models.TableCount{Table: s.RawTable(), Rows: n})
	}
	return counts, nil
}

// ingestQuery builds the CREATE TABLE statement loading one CSV file.
// Short rows are padded with NULLs and surplus trailing fields are dropped,
// so no row is rejected.
func ingestQuery(s TableSchema, path string) string {
	textCols := make([]string, len(s.Columns))
	casts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		textCols[i] = fmt.Sprintf("%s: 'VARCHAR'", quoteLiteral(c.Name))
		if c.Type == TypeVarchar {
			casts[i] = quoteIdent(c.Name)
			continue
		}
		casts[i] = fmt.Sprintf("TRY_CAST(TRIM(%s) AS %s) AS %s", quoteIdent(c.Name), c.Type, quoteIdent(c.Name))
	}

	return fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s AS
		SELECT %s
		FROM read_csv(%s,
			header = true,
			delim = ',',
			quote = '"',
			null_padding = true,
			strict_mode = false,
			columns = {%s})`,
		quoteIdent(s.RawTable()),
		strings.Join(casts, ", "),
		quoteLiteral(path),
		strings.Join(textCols, ", "))
}
