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

// Join pipeline output tables, in build order.
const (
	TableTempKeySocialDistance = "temp_key_social_distance"
	TableSocialDistanceFinal   = "social_distance_final"
	TableStateLevelMobility    = "state_level_mobility"
	TableCountyLevelMobility   = "county_level_mobility"
	TableSocialDistanceCases   = "social_distance_cases_deaths"
	TableStateMobilityCases    = "state_mobility_cases_deaths"
	TableCountyMobilityCases   = "county_mobility_cases_deaths"
	TableCombinedCounty        = "combined_county"
	TableCombined              = "combined"
)

// JoinOptions parameterizes the join pipeline.
type JoinOptions struct {
	// NationalParent is the community parent_loc of state-level mobility rows.
	NationalParent string

	// RequirePopulation keeps only cases rows whose state has a population.
	RequirePopulation bool
}

// joinStep builds one table. For outer joins, innerJoin is the same query
// with the outer join replaced by an inner one; only its row count is used.
type joinStep struct {
	table     string
	kind      string
	query     string
	innerJoin string
}

// JoinTables returns the tables built by Join, in order.
func JoinTables() []string {
	return []string{
		TableTempKeySocialDistance,
		TableSocialDistanceFinal,
		TableStateLevelMobility,
		TableCountyLevelMobility,
		TableSocialDistanceCases,
		TableStateMobilityCases,
		TableCountyMobilityCases,
		TableCombinedCounty,
		TableCombined,
	}
}

func joinSteps(opts JoinOptions) []joinStep {
	populationFilter := ""
	if opts.RequirePopulation {
		populationFilter = "WHERE s.current_population IS NOT NULL"
	}

	stateLevel := `
		SELECT d.state, d.date, c.mobility_type, c.mobility_change, d.m50, d.m50_index
		FROM (SELECT * FROM community_mobility WHERE parent_loc = ` + quoteLiteral(opts.NationalParent) + `) c
		{join} dl_mobility d ON c.date = d.date AND c.location = d.state
		WHERE d.county IS NULL`

	socialCases := `
		SELECT cd.province_state, cd.date, cd.confirmed_cases, cd.fatalities,
			s.religious_rest, s.stay_at_home_end_date, s.current_population, s.current_restrictions
		FROM social_distance_final s
		{join} cases_and_deaths cd ON s.state = cd.province_state
		` + populationFilter

	stateCases := `
		SELECT m.state, m.date, cd.confirmed_cases, cd.fatalities,
			m.mobility_type, m.mobility_change, m.m50, m.m50_index
		FROM cases_and_deaths cd
		{join} state_level_mobility m ON m.state = cd.province_state AND cd.date = m.date`

	countyCases := `
		SELECT m.state, m.county, m.date,
			cd.confirmed_cases AS statewide_confirmed_cases, cd.fatalities AS statewide_fatalities,
			m.mobility_type, m.mobility_change, m.m50, m.m50_index
		FROM cases_and_deaths cd
		{join} county_level_mobility m ON m.state = cd.province_state AND cd.date = m.date`

	return []joinStep{
		{
			table: TableTempKeySocialDistance,
			kind:  models.JoinInner,
			query: `
				SELECT s.state, s.religious_restrictions, k.religious_restrictions AS religious_rest,
					s.stay_at_home_end_date, s.current_population, s.current_restriction
				FROM key_social_distancing k
				INNER JOIN social_distancing s ON k."key" = s.religious_restrictions
				ORDER BY s.state`,
		},
		{
			table: TableSocialDistanceFinal,
			kind:  models.JoinInner,
			query: `
				SELECT t.state, t.religious_rest, t.stay_at_home_end_date, t.current_population,
					k.current_restrictions
				FROM temp_key_social_distance t
				INNER JOIN key_social_distancing k ON k."key" = t.current_restriction
				ORDER BY t.state`,
		},
		{
			table:     TableStateLevelMobility,
			kind:      models.JoinRightOuter,
			query:     withJoin(stateLevel, "RIGHT OUTER JOIN") + " ORDER BY d.state, d.date, c.mobility_type",
			innerJoin: withJoin(stateLevel, "INNER JOIN"),
		},
		{
			table: TableCountyLevelMobility,
			kind:  models.JoinInner,
			query: `
				SELECT d.state, d.county, d.date, c.mobility_type, c.mobility_change, d.m50, d.m50_index
				FROM community_mobility c
				INNER JOIN dl_mobility d
					ON c.date = d.date AND c.location = d.county AND c.parent_loc = d.state
				ORDER BY d.state, d.county, d.date, c.mobility_type`,
		},
		{
			table:     TableSocialDistanceCases,
			kind:      models.JoinRightOuter,
			query:     withJoin(socialCases, "RIGHT OUTER JOIN") + " ORDER BY cd.province_state, cd.date",
			innerJoin: withJoin(socialCases, "INNER JOIN"),
		},
		{
			table:     TableStateMobilityCases,
			kind:      models.JoinRightOuter,
			query:     withJoin(stateCases, "RIGHT OUTER JOIN") + " ORDER BY m.state, m.date, m.mobility_type",
			innerJoin: withJoin(stateCases, "INNER JOIN"),
		},
		{
			table:     TableCountyMobilityCases,
			kind:      models.JoinRightOuter,
			query:     withJoin(countyCases, "RIGHT OUTER JOIN") + " ORDER BY m.state, m.county, m.date, m.mobility_type",
			innerJoin: withJoin(countyCases, "INNER JOIN"),
		},
		{
			table: TableCombinedCounty,
			kind:  models.JoinInner,
			query: `
				SELECT c.state, c.county, c.date, c.statewide_confirmed_cases, c.statewide_fatalities,
					s.stay_at_home_end_date AS restriction_end_date, s.current_population,
					s.religious_rest AS religious_restrictions, s.current_restrictions,
					c.mobility_type, c.mobility_change, c.m50, c.m50_index
				FROM county_mobility_cases_deaths c
				INNER JOIN social_distance_cases_deaths s
					ON c.state = s.province_state AND c.date = s.date AND s.fatalities = c.statewide_fatalities
				ORDER BY c.state, c.date, c.county, c.mobility_type`,
		},
		{
			table: TableCombined,
			kind:  models.JoinInner,
			query: `
				SELECT m.state, m.date, m.confirmed_cases, m.fatalities,
					s.stay_at_home_end_date AS restriction_end_date, s.current_population,
					s.religious_rest AS religious_restrictions, s.current_restrictions,
					m.mobility_type, m.mobility_change, m.m50, m.m50_index
				FROM state_mobility_cases_deaths m
				INNER JOIN social_distance_cases_deaths s
					ON m.state = s.province_state AND m.date = s.date AND s.fatalities = m.fatalities
				ORDER BY m.state, m.date, m.mobility_type`,
		},
	}
}

func withJoin(query, join string) string {
	return strings.ReplaceAll(query, "{join}", join)
}

// Join runs the join pipeline over the cleansed tables. Steps run in a fixed
// order because later steps read earlier outputs by name.
//
// Each step reports a JoinStat. Outer joins are also evaluated as inner joins
// so rows that exist only because of the outer side are counted and logged.
func (db *DB) Join(ctx context.Context, opts JoinOptions) ([]models.JoinStat, error) {
	if opts.NationalParent == "" {
		return nil, fmt.Errorf("join: national parent is required")
	}

	log := logging.Ctx(ctx)
	steps := joinSteps(opts)
	stats := make([]models.JoinStat, 0, len(steps))

	for _, step := range steps {
		query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", quoteIdent(step.table), step.query)
		if err := db.exec(ctx, "join "+step.table, query); err != nil {
			return nil, err
		}

		rows, err := db.CountRows(ctx, step.table)
		if err != nil {
			return nil, err
		}
		stat := models.JoinStat{Name: step.table, Kind: step.kind, Rows: rows, InnerRows: rows}

		if step.innerJoin != "" {
			inner, err := db.countQuery(ctx, "SELECT COUNT(*) FROM ("+step.innerJoin+") j")
			if err != nil {
				return nil, fmt.Errorf("join %s: inner count: %w", step.table, err)
			}
			stat.InnerRows = inner
		}

		event := log.Info()
		if stat.OuterOnly() > 0 {
			event = log.Warn()
		}
		event.
			Str("table", stat.Name).
			Str("kind", stat.Kind).
			Int64("rows", stat.Rows).
			Int64("inner_rows", stat.InnerRows).
			Int64("outer_only", stat.OuterOnly()).
			Msg("Join step complete")

		stats = append(stats, stat)
	}
	return stats, nil
}
