package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/newsdag/internal/app"
	"github.com/vk/newsdag/internal/hcl"
	"github.com/vk/newsdag/internal/newsapi"
	"github.com/vk/newsdag/internal/runstore"
	"github.com/vk/newsdag/internal/settings"
	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/testutil"
)

const (
	stagePrefix = "news_data_analysis/parquet_files"

	rawTable     = "news_api.PUBLIC.news_api_data"
	sourcesTable = "news_api.PUBLIC.summary_news"
	authorsTable = "news_api.PUBLIC.author_activity"
)

var day28 = time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)

// pipeline holds the fakes shared by every run of one test, so consecutive
// runs see the same stage, warehouse and run history.
type pipeline struct {
	t            *testing.T
	workflowPath string
	api          *testutil.NewsAPIServer
	store        *stage.MemoryStore
	wh           *testutil.Warehouse
	runs         *runstore.MemoryStore
	logs         *testutil.SafeBuffer
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	store := stage.NewMemoryStore()
	return &pipeline{
		t:     t,
		api:   testutil.NewNewsAPIServer(t, testutil.SampleArticles()),
		store: store,
		wh:    testutil.NewWarehouse(store, stagePrefix),
		runs:  runstore.NewMemoryStore(),
		logs:  &testutil.SafeBuffer{},
	}
}

// withWorkflow switches the pipeline to a workflow written to a temp file.
func (p *pipeline) withWorkflow(src string) *pipeline {
	p.t.Helper()
	path := filepath.Join(p.t.TempDir(), "workflow.hcl")
	require.NoError(p.t, os.WriteFile(path, []byte(src), 0o644))
	p.workflowPath = path
	return p
}

// run performs one manual run for logicalDate through a fresh App and
// returns its history record and error.
func (p *pipeline) run(logicalDate time.Time) (runstore.Record, error) {
	p.t.Helper()
	cfg, err := app.NewConfig(app.Config{
		WorkflowPath: p.workflowPath,
		LogicalDate:  logicalDate,
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  4,
	})
	require.NoError(p.t, err)

	s, err := settings.FromEnv(func(k string) string {
		return map[string]string{"NEWSAPI_KEY": testutil.FixtureAPIKey, "NEWSAPI_BASE_URL": p.api.URL}[k]
	})
	require.NoError(p.t, err)

	a, err := app.NewApp(context.Background(), p.logs, cfg, hcl.NewLoader(),
		app.WithSettings(s),
		app.WithArticleSource(newsapi.NewClient(s.NewsAPI.Key, newsapi.WithBaseURL(s.NewsAPI.BaseURL))),
		app.WithStageStore(p.store),
		app.WithWarehouse(p.wh),
		app.WithRunStore(p.runs),
	)
	require.NoError(p.t, err)
	defer a.Close()

	runErr := a.Run(context.Background())
	if os.Getenv("NEWSDAG_TEST_LOGS") == "true" {
		p.t.Logf("--- Full Log Output for %s ---\n%s", p.t.Name(), p.logs.String())
	}

	rec, err := p.runs.Get(context.Background(), "manual__"+logicalDate.UTC().Format(time.RFC3339))
	require.NoError(p.t, err)
	return rec, runErr
}

func taskStatuses(rec runstore.Record) map[string]string {
	out := make(map[string]string, len(rec.Tasks))
	for _, t := range rec.Tasks {
		out[t.Name] = string(t.Status)
	}
	return out
}
