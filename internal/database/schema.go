// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

// DuckDB column types used by the source schemas.
const (
	TypeVarchar = "VARCHAR"
	TypeInteger = "INTEGER"
	TypeDouble  = "DOUBLE"
	TypeDate    = "DATE"
)

// Column is one declared CSV column. Columns bind by position; the CSV header
// row is skipped, not matched.
type Column struct {
	Name string
	Type string
}

// TableSchema declares one source dataset.
type TableSchema struct {
	// Name is the dataset name; the raw table is "raw_" + Name.
	Name string

	// File is the CSV file name inside the input directory.
	File string

	// Cleansed is the table the cleanse stage produces from this dataset.
	Cleansed string

	Columns []Column
}

// RawTable returns the name of the table the ingest stage loads.
func (s TableSchema) RawTable() string {
	return "raw_" + s.Name
}

// Dataset names.
const (
	DatasetCases            = "cases_and_deaths"
	DatasetCommunity        = "community_mobility_change_us"
	DatasetDL               = "dl_us_mobility_daterow"
	DatasetSocialDistancing = "social_distancing_by_state"
	DatasetKey              = "key_social_distancing"
)

// Cleansed table names read by the join pipeline.
const (
	TableCases            = "cases_and_deaths"
	TableCommunity        = "community_mobility"
	TableDL               = "dl_mobility"
	TableSocialDistancing = "social_distancing"
	TableKey              = "key_social_distancing"
)

// Schemas returns the five source datasets in ingest order.
func Schemas() []TableSchema {
	return []TableSchema{
		{
			Name:     DatasetCases,
			File:     "cases_and_deaths.csv",
			Cleansed: TableCases,
			Columns: []Column{
				{"id", TypeInteger},
				{"province_state", TypeVarchar},
				{"country_region", TypeVarchar},
				{"date", TypeDate},
				{"confirmed_cases", TypeDouble},
				{"fatalities", TypeDouble},
			},
		},
		{
			Name:     DatasetCommunity,
			File:     "community_mobility_change_us.csv",
			Cleansed: TableCommunity,
			Columns: []Column{
				{"location", TypeVarchar},
				{"loc_type", TypeVarchar},
				{"parent_loc", TypeVarchar},
				{"mobility_type", TypeVarchar},
				{"date", TypeDate},
				{"mobility_change", TypeDouble},
			},
		},
		{
			Name:     DatasetDL,
			File:     "DL-us-mobility-daterow.csv",
			Cleansed: TableDL,
			Columns: []Column{
				{"date", TypeDate},
				{"country_code", TypeVarchar},
				{"admin_level", TypeInteger},
				{"state", TypeVarchar},
				{"county", TypeVarchar},
				{"fips", TypeVarchar},
				{"samples", TypeInteger},
				{"m50", TypeDouble},
				{"m50_index", TypeInteger},
			},
		},
		{
			Name:     DatasetSocialDistancing,
			File:     "social_distancing_by_state.csv",
			Cleansed: TableSocialDistancing,
			Columns: []Column{
				{"state", TypeVarchar},
				{"religious_restrictions", TypeInteger},
				{"stay_at_home_end_date", TypeDate},
				{"current_restriction", TypeInteger},
				{"current_population", TypeInteger},
			},
		},
		{
			Name:     DatasetKey,
			File:     "key_social_distancing.csv",
			Cleansed: TableKey,
			Columns: []Column{
				{"key", TypeInteger},
				{"religious_restrictions", TypeVarchar},
				{"current_restrictions", TypeVarchar},
			},
		},
	}
}

// SchemaByName returns the schema of a dataset.
func SchemaByName(name string) (TableSchema, bool) {
	for _, s := range Schemas() {
		if s.Name == name {
			return s, true
		}
	}
	return TableSchema{}, false
}
