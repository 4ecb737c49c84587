// Covidmobility - COVID-19 Mobility and Social Distancing Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/covidmobility

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/covidmobility/internal/config"
	"github.com/tomtom215/covidmobility/internal/history"
	"github.com/tomtom215/covidmobility/internal/models"
	"github.com/tomtom215/covidmobility/internal/pipeline"
)

// fakeRunner records its calls and stores the configured report, the way
// pipeline.Runner does.
type fakeRunner struct {
	store   history.Store
	rep     *models.RunReport
	err     error
	block   chan struct{}
	running atomic.Bool
	calls   atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context) (*models.RunReport, error) {
	if !f.running.CompareAndSwap(false, true) {
		return nil, pipeline.ErrRunInProgress
	}
	defer f.running.Store(false)
	f.calls.Add(1)

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.rep != nil && f.store != nil {
		if err := f.store.Put(ctx, f.rep); err != nil {
			return nil, err
		}
	}
	return f.rep, f.err
}

func (f *fakeRunner) Running() bool {
	return f.running.Load()
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   history.Store
	runner  *fakeRunner
}

func newTestEnv(t *testing.T, runner *fakeRunner, serverCfg *config.ServerConfig) *testEnv {
	t.Helper()
	store := history.NewMemory(10)
	if runner == nil {
		runner = &fakeRunner{}
	}
	runner.store = store
	if serverCfg == nil {
		serverCfg = &config.ServerConfig{}
	}
	h := NewHandler(context.Background(), runner, store, "test")
	t.Cleanup(h.Wait)
	return &testEnv{
		handler: h,
		router:  NewRouter(h, serverCfg),
		store:   store,
		runner:  runner,
	}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func testRun(started time.Time, status string) *models.RunReport {
	rep := &models.RunReport{
		RunID:      uuid.New().String(),
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		DurationMS: 1000,
		Models: []models.ModelReport{
			{Name: "mobility_policy", Solver: config.SolverElasticNet, Test: models.Metrics{RMSE: 12, R2: 0.4}},
		},
	}
	if status == models.RunStatusFailed {
		rep.Error = "features: boom"
	}
	return rep
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health HealthStatus
	if err := json.Unmarshal(decode(t, rec).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != statusHealthy || health.LastRun != nil || health.Version != "test" {
		t.Errorf("health = %+v, want healthy without a last run", health)
	}

	failed := testRun(time.Now().UTC(), models.RunStatusFailed)
	if err := env.store.Put(context.Background(), failed); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(decode(t, env.do(t, http.MethodGet, "/api/v1/health")).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != statusDegraded {
		t.Errorf("status = %s after a failed run, want degraded", health.Status)
	}
	if health.LastRun == nil || health.LastRun.RunID != failed.RunID {
		t.Errorf("LastRun = %+v, want %s", health.LastRun, failed.RunID)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestHealthProbes(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	if rec := env.do(t, http.MethodGet, "/api/v1/health/live"); rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/health/ready"); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	ledger, err := history.Open(filepath.Join(t.TempDir(), "history"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatal(err)
	}
	closed := NewRouter(NewHandler(context.Background(), &fakeRunner{}, ledger, "test"), &config.ServerConfig{})
	rec := httptest.NewRecorder()
	closed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status with a closed ledger = %d, want 503", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := string(decode(t, rec).Data); got != "[]" {
		t.Errorf("empty ledger data = %s, want []", got)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := env.store.Put(context.Background(), testRun(base.Add(time.Duration(i)*time.Hour), models.RunStatusSucceeded)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query     string
		wantCode  int
		wantCount int
		wantErr   string
	}{
		{"", http.StatusOK, 3, ""},
		{"?limit=2", http.StatusOK, 2, ""},
		{"?limit=abc", http.StatusBadRequest, 0, ErrCodeBadRequest},
		{"?limit=0", http.StatusBadRequest, 0, ErrCodeValidationFailed},
		{"?limit=501", http.StatusBadRequest, 0, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/runs"+tt.query)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			env := decode(t, rec)
			if tt.wantErr != "" {
				if env.Error == nil || env.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want code %s", env.Error, tt.wantErr)
				}
				return
			}
			var runs []models.RunSummary
			if err := json.Unmarshal(env.Data, &runs); err != nil {
				t.Fatal(err)
			}
			if len(runs) != tt.wantCount || env.Meta.Count == nil || *env.Meta.Count != tt.wantCount {
				t.Errorf("runs = %d (meta %v), want %d", len(runs), env.Meta.Count, tt.wantCount)
			}
			if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
				t.Errorf("first run started %v, want the newest", runs[0].StartedAt)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	if rec := env.do(t, http.MethodGet, "/api/v1/runs/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("latest on empty ledger = %d, want 404", rec.Code)
	}

	run := testRun(time.Now().UTC(), models.RunStatusSucceeded)
	if err := env.store.Put(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/api/v1/runs/latest", "/api/v1/runs/" + run.RunID} {
		rec := env.do(t, http.MethodGet, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
		var got models.RunReport
		if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.RunID != run.RunID || len(got.Models) != 1 {
			t.Errorf("GET %s = %s with %d models", path, got.RunID, len(got.Models))
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/runs/does-not-exist")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown run = %d, want 404", rec.Code)
	}
	if e := decode(t, rec).Error; e == nil || e.Code != ErrCodeNotFound || e.RequestID == "" {
		t.Errorf("error = %+v, want NOT_FOUND with a request ID", e)
	}
}

func TestGetRunTables(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	run := testRun(time.Now().UTC(), models.RunStatusSucceeded)
	if err := env.store.Put(context.Background(), run); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/runs/"+run.RunID+"/tables")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %s, want text/plain", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{run.RunID, "mobility_policy"} {
		if !strings.Contains(body, want) {
			t.Errorf("tables output missing %q", want)
		}
	}
}

func TestTriggerRunInBackground(t *testing.T) {
	runner := &fakeRunner{
		rep:   testRun(time.Now().UTC(), models.RunStatusSucceeded),
		block: make(chan struct{}),
	}
	env := newTestEnv(t, runner, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/runs")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first trigger = %d, want 202", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/runs")
	if rec.Code != http.StatusConflict {
		t.Errorf("second trigger while running = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/runs?wait=true"); rec.Code != http.StatusConflict {
		t.Errorf("waiting trigger while running = %d, want 409", rec.Code)
	}

	close(runner.block)
	env.handler.Wait()

	if n := runner.calls.Load(); n != 1 {
		t.Errorf("runner called %d times, want 1", n)
	}
	if _, err := env.store.Get(context.Background(), runner.rep.RunID); err != nil {
		t.Errorf("background run not stored: %v", err)
	}
	if env.handler.busy() {
		t.Error("handler still busy after the run finished")
	}
}

func TestTriggerRunWait(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		err      error
		wantCode int
		wantErr  string
	}{
		{"success", models.RunStatusSucceeded, nil, http.StatusOK, ""},
		{"no training rows", models.RunStatusFailed, fmt.Errorf("model: %w", pipeline.ErrNoTrainingRows), http.StatusUnprocessableEntity, ErrCodeRunFailed},
		{"stage failure", models.RunStatusFailed, fmt.Errorf("ingest: input file missing"), http.StatusInternalServerError, ErrCodeRunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{rep: testRun(time.Now().UTC(), tt.status), err: tt.err}
			env := newTestEnv(t, runner, nil)

			rec := env.do(t, http.MethodPost, "/api/v1/runs?wait=true")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			resp := decode(t, rec)
			if tt.wantErr == "" {
				var got models.RunReport
				if err := json.Unmarshal(resp.Data, &got); err != nil {
					t.Fatal(err)
				}
				if got.RunID != runner.rep.RunID {
					t.Errorf("run = %s, want %s", got.RunID, runner.rep.RunID)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.wantErr {
				t.Fatalf("error = %+v, want %s", resp.Error, tt.wantErr)
			}
			if resp.Error.Details == nil {
				t.Error("failed run response has no run summary")
			}
		})
	}
}

func TestTriggerRunBadWait(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	if rec := env.do(t, http.MethodPost, "/api/v1/runs?wait=maybe"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if n := env.runner.calls.Load(); n != 0 {
		t.Errorf("runner called %d times, want 0", n)
	}
}

func TestTriggerRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, &config.ServerConfig{TriggerRateLimit: 1})

	if rec := env.do(t, http.MethodPost, "/api/v1/runs"); rec.Code != http.StatusAccepted {
		t.Fatalf("first trigger = %d, want 202", rec.Code)
	}
	env.handler.Wait()

	rec := env.do(t, http.MethodPost, "/api/v1/runs")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second trigger = %d, want 429", rec.Code)
	}
	if e := decode(t, rec).Error; e == nil || e.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v, want TOO_MANY_REQUESTS", e)
	}

	// Reads are not rate limited.
	for i := 0; i < 3; i++ {
		if rec := env.do(t, http.MethodGet, "/api/v1/runs"); rec.Code != http.StatusOK {
			t.Errorf("list %d = %d, want 200", i, rec.Code)
		}
	}
}

func TestRouterMisc(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v2/nothing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d, want 404", rec.Code)
	}
	if e := decode(t, rec).Error; e == nil || e.Code != ErrCodeNotFound {
		t.Errorf("unknown route error = %+v", e)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/runs/latest")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE = %d, want 405", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-42" {
		t.Errorf("X-Request-ID = %q, want trace-42", got)
	}
	if m := decode(t, rec).Meta; m == nil || m.RequestID != "trace-42" {
		t.Errorf("meta = %+v, want request_id trace-42", m)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil, &config.ServerConfig{CORSOrigins: []string{"https://dash.example.org"}})

	for _, tt := range []struct {
		origin string
		want   string
	}{
		{"https://dash.example.org", "https://dash.example.org"},
		{"https://evil.example.com", ""},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Access-Control-Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestConcurrentTriggersStartOneRun(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	env := newTestEnv(t, runner, nil)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
			if rec.Code == http.StatusAccepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	close(runner.block)
	env.handler.Wait()

	if n := accepted.Load(); n != 1 {
		t.Errorf("accepted triggers = %d, want 1", n)
	}
	if n := runner.calls.Load(); n != 1 {
		t.Errorf("runner called %d times, want 1", n)
	}
}

func TestCORSDisabledWithoutOrigins(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("Origin", "https://dash.example.org")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want none", got)
	}
}
