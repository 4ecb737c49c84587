// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
)

// Feature engineering tables.
const (
	TableMLFeatures        = "ml_features"
	TableLabelReligious    = "label_religious_rest"
	TableLabelCurrent      = "label_curr_rest"
	TableFinalML           = "final_ml"
	finalMLSnapshotDataset = "final_ml"
)

// labelIndexQuery encodes a string column the way a frequency-ordered label
// indexer does: the most frequent value gets 0, ties go to the smaller string.
// NULL is never indexed.
func labelIndexQuery(column string) string {
	col := quoteIdent(column)
	return fmt.Sprintf(`
		SELECT %[1]s AS label,
			COUNT(*) AS n,
			CAST(row_number() OVER (ORDER BY COUNT(*) DESC, %[1]s ASC) - 1 AS DOUBLE) AS idx
		FROM ml_features
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY idx`, col)
}

// BuildFeatures derives the ML table from the combined table, snapshots it to
// mlDir/final_ml.parquet and reloads final_ml from that snapshot, so model
// fitting always reads the persisted feature set. Returns the row count.
func (db *DB) BuildFeatures(ctx context.Context, mlDir string) (int64, error) {
	statements := []struct {
		table string
		query string
	}{
		{TableMLFeatures, `
			SELECT DISTINCT state, date, restriction_end_date, religious_restrictions, current_restrictions,
				m50, m50_index, confirmed_cases AS cases, fatalities,
				` + density("confirmed_cases", "current_population") + ` AS cases_density,
				` + density("fatalities", "current_population") + ` AS fatality_density
			FROM combined
			ORDER BY state, date, religious_restrictions, current_restrictions, m50, m50_index, cases, fatalities`},
		{TableLabelReligious, labelIndexQuery("religious_restrictions")},
		{TableLabelCurrent, labelIndexQuery("current_restrictions")},
		// fatality_density and the string columns are dropped here.
		{TableFinalML, `
			SELECT f.state, f.date, f.restriction_end_date, f.m50, f.m50_index, f.cases, f.fatalities,
				f.cases_density, r.idx AS label_religious_rest, c.idx AS label_curr_rest
			FROM ml_features f
			LEFT JOIN label_religious_rest r ON f.religious_restrictions = r.label
			LEFT JOIN label_curr_rest c ON f.current_restrictions = c.label
			ORDER BY f.state, f.date, f.m50, f.m50_index, f.cases, f.fatalities`},
	}

	for _, s := range statements {
		query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", quoteIdent(s.table), s.query)
		if err := db.exec(ctx, "features "+s.table, query); err != nil {
			return 0, err
		}
	}

	path := SnapshotPath(mlDir, finalMLSnapshotDataset)
	if err := db.Snapshot(ctx, TableFinalML, path); err != nil {
		return 0, err
	}
	if err := db.LoadSnapshot(ctx, TableFinalML, path); err != nil {
		return 0, err
	}

	n, err := db.CountRows(ctx, TableFinalML)
	if err != nil {
		return 0, err
	}
	logging.Ctx(ctx).Info().Int64("rows", n).Str("path", path).Msg("ML feature table written")
	return n, nil
}

// Labels returns the label encodings built by BuildFeatures.
func (db *DB) Labels(ctx context.Context) ([]models.LabelEntry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT 'religious_restrictions' AS col, label, idx, n FROM label_religious_rest
		UNION ALL
		SELECT 'current_restrictions' AS col, label, idx, n FROM label_curr_rest
		ORDER BY col DESC, idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer closeWithLog(rows, "label rows")

	var result []models.LabelEntry
	for rows.Next() {
		var e models.LabelEntry
		if err := rows.Scan(&e.Column, &e.Label, &e.Index, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Split partitions final_ml by date: rows before splitDate train the models,
// rows on or after it test them. Rows without a date belong to neither side
// and are only counted.
func (db *DB) Split(ctx context.Context, splitDate time.Time) (*models.Split, error) {
	day := splitDate.Format("2006-01-02")

	train, err := db.queryMLRows(ctx, "date < CAST(? AS DATE)", day)
	if err != nil {
		return nil, fmt.Errorf("failed to load training rows: %w", err)
	}
	test, err := db.queryMLRows(ctx, "date >= CAST(? AS DATE)", day)
	if err != nil {
		return nil, fmt.Errorf("failed to load test rows: %w", err)
	}
	undated, err := db.countQuery(ctx, "SELECT COUNT(*) FROM final_ml WHERE date IS NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to count undated rows: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("split_date", day).
		Int("train", len(train)).
		Int("test", len(test)).
		Int64("undated", undated).
		Msg("ML table split")

	return &models.Split{
		SplitDate: splitDate,
		Train:     train,
		Test:      test,
		Undated:   undated,
	}, nil
}

// MLRows returns every row of final_ml.
func (db *DB) MLRows(ctx context.Context) ([]models.MLRow, error) {
	return db.queryMLRows(ctx, "TRUE")
}

func (db *DB) queryMLRows(ctx context.Context, where string, args ...interface{}) ([]models.MLRow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT state, date, restriction_end_date,
			CAST(m50 AS DOUBLE), CAST(m50_index AS DOUBLE),
			CAST(label_religious_rest AS DOUBLE), CAST(label_curr_rest AS DOUBLE),
			CAST(cases AS DOUBLE), CAST(fatalities AS DOUBLE), CAST(cases_density AS DOUBLE)
		FROM final_ml
		WHERE `+where+`
		ORDER BY state, date, m50, m50_index, cases, fatalities`, args...)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "ml rows")

	var result []models.MLRow
	for rows.Next() {
		var (
			state                             sql.NullString
			date, endDate                     sql.NullTime
			m50, m50Index, religious, current sql.NullFloat64
			cases, fatalities, casesDensity   sql.NullFloat64
		)
		if err := rows.Scan(&state, &date, &endDate, &m50, &m50Index, &religious, &current,
			&cases, &fatalities, &casesDensity); err != nil {
			return nil, err
		}
		row := models.MLRow{
			State:              state.String,
			Date:               date.Time,
			M50:                floatPtr(m50),
			M50Index:           floatPtr(m50Index),
			LabelReligiousRest: floatPtr(religious),
			LabelCurrRest:      floatPtr(current),
			Cases:              floatPtr(cases),
			Fatalities:         floatPtr(fatalities),
			CasesDensity:       floatPtr(casesDensity),
		}
		if endDate.Valid {
			t := endDate.Time
			row.RestrictionEndDate = &t
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
