// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/covidmobility/internal/config"
	"github.com/tomtom215/covidmobility/internal/models"
)

// testDBSemaphore limits concurrent DuckDB instances. DuckDB CGO calls can
// hang when many in-memory databases run at once under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes database creation.
var testDBMutex sync.Mutex

// setupTestDB creates a new in-memory test database with timeout protection.
// The semaphore is held for the whole test and released by t.Cleanup.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
		Threads:   2,
	}

	type result struct {
		db  *DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// fixtureFiles is a synthetic input set: two states (New York, Wyoming) with
// one county each over three dates, plus rows that exercise the cleanse and
// join edge cases:
//   - a duplicate New York cases row (removed by DISTINCT)
//   - a Canadian cases row and a Canadian dl row (removed by the country filter)
//   - a malformed cases row for "Nowhere" (coerced to NULLs, no population)
//   - "Zeroland" with a zero population (density must be NULL)
//   - a Texas dl state row with no community data (outer-only join row)
//   - a community row without parent_loc (removed by cleanse)
var fixtureFiles = map[string]string{
	"cases_and_deaths.csv": `id,province_state,country_region,date,confirmed_cases,fatalities
1,New York,US,2020-04-20,100,1
2,New York,US,2020-04-21,200,2
3,New York,US,2020-04-22,300,3
1,New York,US,2020-04-20,100,1
4,Wyoming,US,2020-04-20,10,0
5,Wyoming,US,2020-04-21,20,1
6,Wyoming,US,2020-04-22,30,2
7,Ontario,Canada,2020-04-20,50,5
abc,Nowhere,US,2020-13-45,n/a,0
8,Zeroland,US,2020-04-20,5,1
`,
	"community_mobility_change_us.csv": `location,loc_type,parent_loc,mobility_type,date,mobility_change
New York,state,United States,retail,2020-04-20,-50
New York,state,United States,retail,2020-04-21,-55
New York,state,United States,retail,2020-04-22,-60
Wyoming,state,United States,retail,2020-04-20,-10
Wyoming,state,United States,retail,2020-04-21,-12
Wyoming,state,United States,retail,2020-04-22,-14
Kings County,county,New York,retail,2020-04-20,-70
Kings County,county,New York,retail,2020-04-21,-72
Kings County,county,New York,retail,2020-04-22,-74
Laramie County,county,Wyoming,retail,2020-04-20,-20
Laramie County,county,Wyoming,retail,2020-04-21,-22
Laramie County,county,Wyoming,retail,2020-04-22,-24
Orphan,county,,retail,2020-04-20,-1
`,
	"DL-us-mobility-daterow.csv": `date,country_code,admin_level,state,county,fips,samples,m50,m50_index
2020-04-20,US,1,New York,,36,1000,0.5,5
2020-04-21,US,1,New York,,36,1000,0.4,4
2020-04-22,US,1,New York,,36,1000,0.3,3
2020-04-20,US,1,Wyoming,,56,300,8.0,70
2020-04-21,US,1,Wyoming,,56,300,7.5,68
2020-04-22,US,1,Wyoming,,56,300,7.0,66
2020-04-20,US,1,Texas,,48,900,3.0,30
2020-04-20,US,2,New York,Kings County,36047,500,0.2,2
2020-04-21,US,2,New York,Kings County,36047,500,0.2,2
2020-04-22,US,2,New York,Kings County,36047,500,0.1,1
2020-04-20,US,2,Wyoming,Laramie County,56021,100,9.0,80
2020-04-21,US,2,Wyoming,Laramie County,56021,100,8.5,78
2020-04-22,US,2,Wyoming,Laramie County,56021,100,8.0,76
2020-04-20,CA,1,Ontario,,,10,1.0,10
`,
	"social_distancing_by_state.csv": `state,religious_restrictions,stay_at_home_end_date,current_restriction,current_population
New York,1,2020-05-15,1,19450000
Wyoming,2,,2,578759
Zeroland,2,,2,0
`,
	"key_social_distancing.csv": `key,religious_restrictions,current_restrictions
1,Gatherings Prohibited,Stay at Home
2,No Restrictions,Reopened
`,
}

// writeFixtures writes the fixture CSV files, skipping any named in omit.
func writeFixtures(t *testing.T, dir string, omit ...string) {
	t.Helper()
	skip := make(map[string]bool, len(omit))
	for _, o := range omit {
		skip[o] = true
	}
	for name, content := range fixtureFiles {
		if skip[name] {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}
}

// runStages runs ingest, cleanse, join and aggregate over the fixtures.
func runStages(t *testing.T, db *DB, inDir, outDir string, aggOpts AggregateOptions) []models.JoinStat {
	t.Helper()
	ctx := context.Background()

	if _, err := db.Ingest(ctx, inDir); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	rawDir := filepath.Join(outDir, "raw")
	if err := db.SnapshotRaw(ctx, rawDir); err != nil {
		t.Fatalf("SnapshotRaw() error = %v", err)
	}
	if _, err := db.Cleanse(ctx, rawDir, CleanseOptions{Country: "US"}); err != nil {
		t.Fatalf("Cleanse() error = %v", err)
	}
	stats, err := db.Join(ctx, JoinOptions{NationalParent: "United States", RequirePopulation: true})
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := db.BuildAggregates(ctx, aggOpts); err != nil {
		t.Fatalf("BuildAggregates() error = %v", err)
	}
	return stats
}

func defaultAggregateOptions() AggregateOptions {
	return AggregateOptions{ExcludeCounties: []string{"Pocahontas County"}}
}

func mustCount(t *testing.T, db *DB, query string) int64 {
	t.Helper()
	n, err := db.countQuery(context.Background(), query)
	if err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func TestNewAndPing(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if db.Conn() == nil {
		t.Fatal("Conn() returned nil")
	}
}

func TestEnsureContext(t *testing.T) {
	db := &DB{}

	//nolint:staticcheck // nil context is the case under test
	ctx, cancel := db.ensureContext(nil)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("nil context should get a deadline")
	}

	ctx2, cancel2 := db.ensureContext(context.Background())
	defer cancel2()
	if _, ok := ctx2.Deadline(); !ok {
		t.Error("background context should get a deadline")
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
	defer parentCancel()
	want, _ := parent.Deadline()
	ctx3, cancel3 := db.ensureContext(parent)
	defer cancel3()
	got, _ := ctx3.Deadline()
	if !got.Equal(want) {
		t.Errorf("existing deadline replaced: got %v want %v", got, want)
	}
}

func TestQuoting(t *testing.T) {
	tests := []struct {
		in, ident, literal string
	}{
		{"plain", `"plain"`, `'plain'`},
		{`we"ird`, `"we""ird"`, `'we"ird'`},
		{"O'Brien County", `"O'Brien County"`, `'O''Brien County'`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.ident {
			t.Errorf("quoteIdent(%q) = %s, want %s", tt.in, got, tt.ident)
		}
		if got := quoteLiteral(tt.in); got != tt.literal {
			t.Errorf("quoteLiteral(%q) = %s, want %s", tt.in, got, tt.literal)
		}
	}
}

func TestM50Filter(t *testing.T) {
	tests := []struct {
		name string
		opts AggregateOptions
		want string
	}{
		{"none", AggregateOptions{}, ""},
		{"counties", AggregateOptions{ExcludeCounties: []string{"A", "B"}}, "WHERE county NOT IN ('A', 'B')"},
		{"index", AggregateOptions{MaxM50Index: 150}, "WHERE (m50_index IS NULL OR m50_index <= 150)"},
		{
			"both",
			AggregateOptions{ExcludeCounties: []string{"A"}, MaxM50Index: 99.5},
			"WHERE county NOT IN ('A') AND (m50_index IS NULL OR m50_index <= 99.5)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m50Filter(tt.opts); got != tt.want {
				t.Errorf("m50Filter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSchemas(t *testing.T) {
	schemas := Schemas()
	if len(schemas) != 5 {
		t.Fatalf("len(Schemas()) = %d, want 5", len(schemas))
	}
	seen := map[string]bool{}
	for _, s := range schemas {
		if seen[s.Name] {
			t.Errorf("duplicate schema %s", s.Name)
		}
		seen[s.Name] = true
		if !strings.HasSuffix(s.File, ".csv") {
			t.Errorf("%s: file %q is not a csv", s.Name, s.File)
		}
		if len(s.Columns) == 0 {
			t.Errorf("%s: no columns", s.Name)
		}
	}
	if _, ok := SchemaByName(DatasetDL); !ok {
		t.Errorf("SchemaByName(%q) not found", DatasetDL)
	}
	if _, ok := SchemaByName("nope"); ok {
		t.Error("SchemaByName(nope) should not be found")
	}
}
