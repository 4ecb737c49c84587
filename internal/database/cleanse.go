// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
)

// CleanseOptions selects the rows kept by Cleanse.
type CleanseOptions struct {
	// Country is matched against cases.country_region and dl.country_code.
	Country string
}

// SnapshotRaw writes every raw_* table to dir/<dataset>.parquet.
func (db *DB) SnapshotRaw(ctx context.Context, dir string) error {
	for _, s := range Schemas() {
		if err := db.Snapshot(ctx, s.RawTable(), SnapshotPath(dir, s.Name)); err != nil {
			return err
		}
	}
	return nil
}

// CleansedTables returns the tables produced by Cleanse, in order.
func CleansedTables() []string {
	return []string{TableCases, TableCommunity, TableDL, TableSocialDistancing, TableKey}
}

// Cleanse re-reads the raw snapshots in rawDir and builds the cleansed tables:
//
//   - cases_and_deaths: duplicate rows removed, country_region = Country
//   - community_mobility: location and parent_loc present
//   - dl_mobility: country_code = Country and state present
//   - social_distancing, key_social_distancing: unchanged
//
// NULLs in other columns pass through.
func (db *DB) Cleanse(ctx context.Context, rawDir string, opts CleanseOptions) ([]models.TableCount, error) {
	if opts.Country == "" {
		return nil, fmt.Errorf("cleanse: country is required")
	}
	src := func(dataset string) (string, error) {
		path := SnapshotPath(rawDir, dataset)
		if err := requireSnapshot(path); err != nil {
			return "", err
		}
		return "read_parquet(" + quoteLiteral(path) + ")", nil
	}

	type step struct {
		table   string
		dataset string
		query   string
	}
	country := quoteLiteral(opts.Country)
	steps := []step{
		{TableCases, DatasetCases, `
			SELECT DISTINCT * FROM {src}
			WHERE country_region = ` + country + `
			ORDER BY province_state, date, id`},
		{TableCommunity, DatasetCommunity, `
			SELECT * FROM {src}
			WHERE location IS NOT NULL AND parent_loc IS NOT NULL`},
		{TableDL, DatasetDL, `
			SELECT * FROM {src}
			WHERE country_code = ` + country + ` AND state IS NOT NULL`},
		{TableSocialDistancing, DatasetSocialDistancing, `SELECT * FROM {src}`},
		{TableKey, DatasetKey, `SELECT * FROM {src}`},
	}

	for _, s := range steps {
		from, err := src(s.dataset)
		if err != nil {
			return nil, err
		}
		query := "CREATE OR REPLACE TABLE " + quoteIdent(s.table) + " AS " + strings.ReplaceAll(s.query, "{src}", from)
		if err := db.exec(ctx, "cleanse "+s.table, query); err != nil {
			return nil, err
		}
	}

	counts, err := db.countTables(ctx, CleansedTables()...)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		logging.Ctx(ctx).Info().Str("table", c.Table).Int64("rows", c.Rows).Msg("Table cleansed")
	}
	return counts, nil
}
