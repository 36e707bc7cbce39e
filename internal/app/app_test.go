package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/newsdag/internal/hcl"
	"github.com/vk/newsdag/internal/newsapi"
	"github.com/vk/newsdag/internal/runstore"
	"github.com/vk/newsdag/internal/settings"
	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/task"
	"github.com/vk/newsdag/internal/testutil"
)

const prefix = "news_data_analysis/parquet_files"

type fixture struct {
	app   *App
	logs  *testutil.SafeBuffer
	wh    *testutil.Warehouse
	store *stage.MemoryStore
	api   *testutil.NewsAPIServer
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 4
	}
	appCfg, err := NewConfig(cfg)
	require.NoError(t, err)

	f := &fixture{
		logs:  &testutil.SafeBuffer{},
		store: stage.NewMemoryStore(),
		api:   testutil.NewNewsAPIServer(t, testutil.SampleArticles()),
	}
	f.wh = testutil.NewWarehouse(f.store, prefix)

	s, err := settings.FromEnv(func(k string) string {
		return map[string]string{"NEWSAPI_KEY": testutil.FixtureAPIKey, "NEWSAPI_BASE_URL": f.api.URL}[k]
	})
	require.NoError(t, err)

	all := append([]Option{
		WithSettings(s),
		WithStageStore(f.store),
		WithArticleSource(newsapi.NewClient(testutil.FixtureAPIKey, newsapi.WithBaseURL(f.api.URL))),
		WithWarehouse(f.wh),
		WithRunStore(runstore.NewMemoryStore()),
	}, opts...)

	f.app, err = NewApp(context.Background(), f.logs, appCfg, hcl.NewLoader(), all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.app.Close() })
	return f
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{WorkerCount: 1})
	require.NoError(t, err)
	assert.Equal(t, ModeOnce, cfg.Mode)

	testCases := map[string]Config{
		"unknown mode":       {Mode: "daemon", WorkerCount: 1},
		"no workers":         {WorkerCount: 0},
		"date in serve mode": {Mode: ModeServe, WorkerCount: 1, LogicalDate: time.Now()},
		"port out of range":  {WorkerCount: 1, HealthcheckPort: 70000},
	}
	for name, c := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewConfig(c)
			assert.Error(t, err)
		})
	}
}

func TestNewApp_EmbeddedWorkflow(t *testing.T) {
	f := newFixture(t, Config{})

	assert.Equal(t, "newsapi_to_gcs", f.app.Workflow().ID)
	assert.Equal(t, []string{
		"newsapi_data_to_gcs",
		"snowflake_create_table",
		"snowflake_copy_from_stage",
		"create_or_replace_author_activity_tb",
		"create_or_replace_news_summary_tb",
	}, f.app.Graph().TopologicalOrder())
}

func TestNewApp_LoadErrors(t *testing.T) {
	cfg, err := NewConfig(Config{WorkerCount: 1, WorkflowPath: filepath.Join(t.TempDir(), "missing.hcl")})
	require.NoError(t, err)
	_, err = NewApp(context.Background(), &testutil.SafeBuffer{}, cfg, hcl.NewLoader(), WithSettings(&settings.Settings{}))
	assert.ErrorContains(t, err, "failed to load workflow")

	path := filepath.Join(t.TempDir(), "cycle.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
workflow "cyclic" {
  schedule {
    every      = "24h"
    start_date = "2024-12-28"
  }
}
task "a" {
  action     = "fetch"
  depends_on = ["b"]
}
task "b" {
  action     = "sql"
  sql        = "SELECT 1"
  depends_on = ["a"]
}
`), 0o644))
	cfg, err = NewConfig(Config{WorkerCount: 1, WorkflowPath: path})
	require.NoError(t, err)
	_, err = NewApp(context.Background(), &testutil.SafeBuffer{}, cfg, hcl.NewLoader(), WithSettings(&settings.Settings{}))
	assert.ErrorContains(t, err, "failed to build task graph")
	assert.ErrorContains(t, err, "cycle")
}

func TestNewApp_MissingSettings(t *testing.T) {
	cfg, err := NewConfig(Config{WorkerCount: 1})
	require.NoError(t, err)
	s, err := settings.FromEnv(func(string) string { return "" })
	require.NoError(t, err)

	_, err = NewApp(context.Background(), &testutil.SafeBuffer{}, cfg, hcl.NewLoader(), WithSettings(s))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid settings")
	assert.Contains(t, err.Error(), "NEWSAPI_KEY is required")
}

func TestRun_Once(t *testing.T) {
	f := newFixture(t, Config{LogicalDate: time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC), LogLevel: "debug"})

	require.NoError(t, f.app.Run(context.Background()))

	objects, err := f.store.List(context.Background(), prefix)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, prefix+"/run_2024-12-28.parquet", objects[0].Key)

	assert.Equal(t, 10, f.wh.RowCount("news_api.PUBLIC.news_api_data"))
	assert.Equal(t, 2, f.wh.RowCount("news_api.PUBLIC.summary_news"))
	assert.Equal(t, 3, f.wh.RowCount("news_api.PUBLIC.author_activity"))

	recs, err := f.app.Runs().List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "manual__2024-12-28T00:00:00Z", recs[0].RunID)
	assert.Equal(t, task.StatusSucceeded, recs[0].Status)
	assert.Contains(t, f.logs.String(), "Run finished.")
}

func TestRun_OnceFailure(t *testing.T) {
	f := newFixture(t, Config{LogicalDate: time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)})
	f.wh.FailOn("COPY INTO", errors.New("stage not accessible"), 0)

	err := f.app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run manual__2024-12-28T00:00:00Z failed")
	assert.Contains(t, err.Error(), "snowflake_copy_from_stage")

	rec, err := f.app.Runs().Get(context.Background(), "manual__2024-12-28T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"snowflake_copy_from_stage"}, rec.FailedTasks())
}

func TestRun_ServeStopsOnCancel(t *testing.T) {
	now := time.Date(2024, 12, 28, 6, 0, 0, 0, time.UTC)
	waiting := make(chan time.Duration, 1)
	f := newFixture(t, Config{Mode: ModeServe}, WithClock(
		func() time.Time { return now },
		func(d time.Duration) (<-chan time.Time, func() bool) {
			waiting <- d
			return make(chan time.Time), func() bool { return true }
		},
	))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()

	select {
	case d := <-waiting:
		assert.Equal(t, 18*time.Hour, d)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never waited for a trigger")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve mode did not stop")
	}
	assert.Contains(t, f.logs.String(), "Scheduler finished.")
}

func TestRoutes(t *testing.T) {
	f := newFixture(t, Config{LogicalDate: time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, f.app.Run(context.Background()))
	h := f.app.routes()

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	rr := get("/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = get("/runs?limit=10")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []runstore.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].Tasks, 5)

	rr = get("/runs/manual__2024-12-28T00:00:00Z")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec runstore.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, task.StatusSucceeded, rec.Status)

	assert.Equal(t, http.StatusNotFound, get("/runs/nope").Code)
	assert.Equal(t, http.StatusBadRequest, get("/runs?limit=-1").Code)
}
