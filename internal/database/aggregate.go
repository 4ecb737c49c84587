// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/covidmobility/internal/logging"
	"github.com/tomtom215/covidmobility/internal/models"
)

// Aggregate tables.
const (
	TableDensitySocialDist  = "density_social_dist"
	TableTempCountyPop      = "temp_county_pop"
	TableTempPop            = "temp_pop"
	TableMobilityTypeChange = "mobility_type_change"
	TableStatewideMobility  = "statewide_mobility"
	TableCountyM50          = "county_m50"
	TableStatewideM50       = "statewide_m50"
)

// AggregateOptions controls outlier removal in the m50 aggregates.
type AggregateOptions struct {
	// ExcludeCounties are removed from county_m50 (and so from statewide_m50).
	ExcludeCounties []string

	// MaxM50Index drops rows with a larger m50_index from county_m50. 0 disables it.
	MaxM50Index float64
}

// AggregateTables returns the tables built by BuildAggregates, in order.
func AggregateTables() []string {
	return []string{
		TableDensitySocialDist,
		TableTempCountyPop,
		TableTempPop,
		TableMobilityTypeChange,
		TableStatewideMobility,
		TableCountyM50,
		TableStatewideM50,
	}
}

// density divides by population; a zero or NULL population yields NULL.
func density(numerator, population string) string {
	return fmt.Sprintf("%s / NULLIF(%s, 0)", numerator, population)
}

// m50Filter returns the WHERE clause of county_m50.
func m50Filter(opts AggregateOptions) string {
	conds := make([]string, 0, 2)
	if len(opts.ExcludeCounties) > 0 {
		quoted := make([]string, len(opts.ExcludeCounties))
		for i, c := range opts.ExcludeCounties {
			quoted[i] = quoteLiteral(c)
		}
		conds = append(conds, "county NOT IN ("+strings.Join(quoted, ", ")+")")
	}
	if opts.MaxM50Index > 0 {
		conds = append(conds, "(m50_index IS NULL OR m50_index <= "+
			strconv.FormatFloat(opts.MaxM50Index, 'f', -1, 64)+")")
	}
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

// BuildAggregates creates the density and mobility aggregate tables from the
// join pipeline output. Averages are arithmetic means; every table is ordered
// by its full grouping key.
func (db *DB) BuildAggregates(ctx context.Context, opts AggregateOptions) ([]models.TableCount, error) {
	statements := []struct {
		table string
		query string
	}{
		{TableDensitySocialDist, `
			SELECT *,
				` + density("confirmed_cases", "current_population") + ` AS cases_density,
				` + density("fatalities", "current_population") + ` AS fatality_density
			FROM social_distance_cases_deaths
			ORDER BY province_state, date`},
		{TableTempCountyPop, `
			SELECT state, county, date, restriction_end_date, religious_restrictions, current_restrictions,
				mobility_type, mobility_change, m50, m50_index,
				` + density("statewide_confirmed_cases", "current_population") + ` AS cases_density,
				` + density("statewide_fatalities", "current_population") + ` AS fatality_density
			FROM combined_county
			ORDER BY state, county, date, mobility_type`},
		{TableTempPop, `
			SELECT state, date, restriction_end_date, religious_restrictions, current_restrictions,
				mobility_type, mobility_change, m50, m50_index,
				` + density("confirmed_cases", "current_population") + ` AS cases_density,
				` + density("fatalities", "current_population") + ` AS fatality_density
			FROM combined
			ORDER BY state, date, mobility_type`},
		{TableMobilityTypeChange, `
			SELECT state, county, mobility_type, current_restrictions,
				avg(mobility_change) AS avg_mobility_change,
				avg(cases_density) AS avg_cases_density,
				avg(fatality_density) AS avg_fatality_density
			FROM temp_county_pop
			GROUP BY state, county, mobility_type, current_restrictions
			ORDER BY state, county, mobility_type, current_restrictions`},
		{TableStatewideMobility, `
			SELECT state, current_restrictions,
				avg(avg_mobility_change) AS avg_mobility_change,
				avg(avg_cases_density) AS avg_cases_density,
				avg(avg_fatality_density) AS avg_fatality_density
			FROM mobility_type_change
			GROUP BY state, current_restrictions
			ORDER BY state, current_restrictions`},
		{TableCountyM50, `
			SELECT state, county, current_restrictions,
				avg(m50) AS avg_m50,
				avg(m50_index) AS avg_m50_index,
				avg(cases_density) AS avg_cases_density,
				avg(fatality_density) AS avg_fatality_density
			FROM temp_county_pop
			` + m50Filter(opts) + `
			GROUP BY state, county, current_restrictions
			ORDER BY state, county, current_restrictions`},
		{TableStatewideM50, `
			SELECT state, current_restrictions,
				avg(avg_m50) AS avg_m50,
				avg(avg_m50_index) AS avg_m50_index,
				avg(avg_cases_density) AS avg_cases_density,
				avg(avg_fatality_density) AS avg_fatality_density
			FROM county_m50
			GROUP BY state, current_restrictions
			ORDER BY state, current_restrictions`},
	}

	for _, s := range statements {
		query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", quoteIdent(s.table), s.query)
		if err := db.exec(ctx, "aggregate "+s.table, query); err != nil {
			return nil, err
		}
	}

	counts, err := db.countTables(ctx, AggregateTables()...)
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		logging.Ctx(ctx).Debug().Str("table", c.Table).Int64("rows", c.Rows).Msg("Aggregate built")
	}
	return counts, nil
}

// PolicyAverages averages densities and counts per current-restriction policy.
// A zero since covers all dates; otherwise only dates after since are used.
func (db *DB) PolicyAverages(ctx context.Context, since time.Time) ([]models.PolicyAverage, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT current_restrictions,
			avg(cases_density), avg(fatality_density), avg(confirmed_cases), avg(fatalities)
		FROM density_social_dist`
	var args []interface{}
	if !since.IsZero() {
		query += " WHERE date > CAST(? AS DATE)"
		args = append(args, since.Format("2006-01-02"))
	}
	query += " GROUP BY current_restrictions ORDER BY current_restrictions NULLS LAST"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy averages: %w", err)
	}
	defer closeWithLog(rows, "policy averages rows")

	var result []models.PolicyAverage
	for rows.Next() {
		var (
			policy                            sql.NullString
			cases, fatality, confirmed, fatal sql.NullFloat64
		)
		if err := rows.Scan(&policy, &cases, &fatality, &confirmed, &fatal); err != nil {
			return nil, fmt.Errorf("failed to scan policy average: %w", err)
		}
		result = append(result, models.PolicyAverage{
			CurrentRestrictions: stringPtr(policy),
			AvgCasesDensity:     floatPtr(cases),
			AvgFatalityDensity:  floatPtr(fatality),
			AvgConfirmedCases:   floatPtr(confirmed),
			AvgFatalities:       floatPtr(fatal),
		})
	}
	return result, rows.Err()
}

// StateDensities returns per-state densities for dates after since, lowest
// cases density first.
func (db *DB) StateDensities(ctx context.Context, since time.Time) ([]models.StateDensity, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT province_state, date, cases_density, fatality_density, current_restrictions,
			confirmed_cases, fatalities
		FROM density_social_dist
		WHERE date > CAST(? AS DATE)
		ORDER BY cases_density NULLS LAST, province_state, date`,
		since.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query state densities: %w", err)
	}
	defer closeWithLog(rows, "state densities rows")

	var result []models.StateDensity
	for rows.Next() {
		var (
			state                         sql.NullString
			date                          time.Time
			casesDensity, fatalityDensity sql.NullFloat64
			policy                        sql.NullString
			confirmed, fatalities         sql.NullFloat64
		)
		if err := rows.Scan(&state, &date, &casesDensity, &fatalityDensity, &policy, &confirmed, &fatalities); err != nil {
			return nil, fmt.Errorf("failed to scan state density: %w", err)
		}
		result = append(result, models.StateDensity{
			State:               state.String,
			Date:                date,
			CasesDensity:        floatPtr(casesDensity),
			FatalityDensity:     floatPtr(fatalityDensity),
			CurrentRestrictions: stringPtr(policy),
			ConfirmedCases:      floatPtr(confirmed),
			Fatalities:          floatPtr(fatalities),
		})
	}
	return result, rows.Err()
}

// MobilityTypeChanges returns the mobility_type_change table.
func (db *DB) MobilityTypeChanges(ctx context.Context) ([]models.MobilityTypeChange, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT state, county, mobility_type, current_restrictions,
			avg_mobility_change, avg_cases_density, avg_fatality_density
		FROM mobility_type_change
		ORDER BY state, county, mobility_type, current_restrictions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mobility type changes: %w", err)
	}
	defer closeWithLog(rows, "mobility type rows")

	var result []models.MobilityTypeChange
	for rows.Next() {
		var (
			state, county, mobilityType, policy sql.NullString
			change, cases, fatality             sql.NullFloat64
		)
		if err := rows.Scan(&state, &county, &mobilityType, &policy, &change, &cases, &fatality); err != nil {
			return nil, fmt.Errorf("failed to scan mobility type change: %w", err)
		}
		result = append(result, models.MobilityTypeChange{
			State:               state.String,
			County:              county.String,
			MobilityType:        stringPtr(mobilityType),
			CurrentRestrictions: stringPtr(policy),
			AvgMobilityChange:   floatPtr(change),
			AvgCasesDensity:     floatPtr(cases),
			AvgFatalityDensity:  floatPtr(fatality),
		})
	}
	return result, rows.Err()
}

// StatewideMobility returns the statewide_mobility table.
func (db *DB) StatewideMobility(ctx context.Context) ([]models.StatewideMobility, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT state, current_restrictions, avg_mobility_change, avg_cases_density, avg_fatality_density
		FROM statewide_mobility
		ORDER BY state, current_restrictions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statewide mobility: %w", err)
	}
	defer closeWithLog(rows, "statewide mobility rows")

	var result []models.StatewideMobility
	for rows.Next() {
		var (
			state, policy           sql.NullString
			change, cases, fatality sql.NullFloat64
		)
		if err := rows.Scan(&state, &policy, &change, &cases, &fatality); err != nil {
			return nil, fmt.Errorf("failed to scan statewide mobility: %w", err)
		}
		result = append(result, models.StatewideMobility{
			State:               state.String,
			CurrentRestrictions: stringPtr(policy),
			AvgMobilityChange:   floatPtr(change),
			AvgCasesDensity:     floatPtr(cases),
			AvgFatalityDensity:  floatPtr(fatality),
		})
	}
	return result, rows.Err()
}

// CountyM50 returns the county_m50 table.
func (db *DB) CountyM50(ctx context.Context) ([]models.CountyM50, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT state, county, current_restrictions, avg_m50, avg_m50_index, avg_cases_density, avg_fatality_density
		FROM county_m50
		ORDER BY state, county, current_restrictions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query county m50: %w", err)
	}
	defer closeWithLog(rows, "county m50 rows")

	var result []models.CountyM50
	for rows.Next() {
		var (
			state, county, policy          sql.NullString
			m50, m50Index, cases, fatality sql.NullFloat64
		)
		if err := rows.Scan(&state, &county, &policy, &m50, &m50Index, &cases, &fatality); err != nil {
			return nil, fmt.Errorf("failed to scan county m50: %w", err)
		}
		result = append(result, models.CountyM50{
			State:               state.String,
			County:              county.String,
			CurrentRestrictions: stringPtr(policy),
			AvgM50:              floatPtr(m50),
			AvgM50Index:         floatPtr(m50Index),
			AvgCasesDensity:     floatPtr(cases),
			AvgFatalityDensity:  floatPtr(fatality),
		})
	}
	return result, rows.Err()
}

// StatewideM50 returns the statewide_m50 table.
func (db *DB) StatewideM50(ctx context.Context) ([]models.StatewideM50, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT state, current_restrictions, avg_m50, avg_m50_index, avg_cases_density, avg_fatality_density
		FROM statewide_m50
		ORDER BY state, current_restrictions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statewide m50: %w", err)
	}
	defer closeWithLog(rows, "statewide m50 rows")

	var result []models.StatewideM50
	for rows.Next() {
		var (
			state, policy                  sql.NullString
			m50, m50Index, cases, fatality sql.NullFloat64
		)
		if err := rows.Scan(&state, &policy, &m50, &m50Index, &cases, &fatality); err != nil {
			return nil, fmt.Errorf("failed to scan statewide m50: %w", err)
		}
		result = append(result, models.StatewideM50{
			State:               state.String,
			CurrentRestrictions: stringPtr(policy),
			AvgM50:              floatPtr(m50),
			AvgM50Index:         floatPtr(m50Index),
			AvgCasesDensity:     floatPtr(cases),
			AvgFatalityDensity:  floatPtr(fatality),
		})
	}
	return result, rows.Err()
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
