package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/newsdag/internal/config"
	"github.com/vk/newsdag/internal/dag"
	"github.com/vk/newsdag/workflows"
)

func TestLoadBytes_EmbeddedWorkflow(t *testing.T) {
	wf, err := NewLoader().LoadBytes(context.Background(), workflows.DefaultFilename, workflows.NewsAPIToGCS)
	require.NoError(t, err)

	assert.Equal(t, "newsapi_to_gcs", wf.ID)
	assert.Equal(t, "growdataskills", wf.Owner)
	assert.Equal(t, "Fetch news articles and save as Parquet in GCS", wf.Description)
	assert.Equal(t, config.Schedule{
		Every:     24 * time.Hour,
		StartDate: time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC),
		Catchup:   false,
	}, wf.Schedule)
	assert.Equal(t, config.Defaults{Retries: 0, RetryDelay: 5 * time.Minute}, wf.Defaults)

	var names []string
	for _, tk := range wf.Tasks {
		names = append(names, tk.Name)
	}
	assert.Equal(t, []string{
		"newsapi_data_to_gcs",
		"snowflake_create_table",
		"snowflake_copy_from_stage",
		"create_or_replace_news_summary_tb",
		"create_or_replace_author_activity_tb",
	}, names)

	fetch := wf.TaskByName("newsapi_data_to_gcs")
	assert.Equal(t, config.ActionFetch, fetch.Action)
	assert.Empty(t, fetch.SQL)
	assert.Empty(t, fetch.DependsOn)

	create := wf.TaskByName("snowflake_create_table")
	assert.Contains(t, create.SQL, "CREATE TABLE IF NOT EXISTS news_api.PUBLIC.news_api_data USING TEMPLATE")
	assert.Contains(t, create.SQL, "LOCATION => '@news_api.PUBLIC.gcs_raw_data_stage'")
	assert.Contains(t, create.SQL, "FILE_FORMAT => 'parquet_format'")

	load := wf.TaskByName("snowflake_copy_from_stage")
	assert.Equal(t, []string{"snowflake_create_table"}, load.DependsOn)
	assert.Equal(t, "COPY INTO news_api.PUBLIC.news_api_data\n"+
		"FROM @news_api.PUBLIC.gcs_raw_data_stage\n"+
		"MATCH_BY_COLUMN_NAME=CASE_INSENSITIVE\n"+
		"FILE_FORMAT = (FORMAT_NAME = 'parquet_format')", load.SQL)

	summary := wf.TaskByName("create_or_replace_news_summary_tb")
	assert.Contains(t, summary.SQL, "CREATE OR REPLACE TABLE news_api.PUBLIC.summary_news AS")
	assert.Contains(t, summary.SQL, `GROUP BY "source"`)

	authors := wf.TaskByName("create_or_replace_author_activity_tb")
	assert.Contains(t, authors.SQL, "CREATE OR REPLACE TABLE news_api.PUBLIC.author_activity AS")
	assert.Contains(t, authors.SQL, `WHERE "author" IS NOT NULL`)
	assert.Equal(t, []string{"snowflake_copy_from_stage"}, authors.DependsOn)

	g, err := dag.Build(context.Background(), wf)
	require.NoError(t, err)
	assert.Equal(t, 5, g.Len())
	down, err := g.Downstream("snowflake_copy_from_stage")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"create_or_replace_news_summary_tb", "create_or_replace_author_activity_tb"}, down)
}

func TestLoadBytes_VarOverrides(t *testing.T) {
	l := NewLoader(WithVars(map[string]string{"database": "news_dev"}))
	wf, err := l.LoadBytes(context.Background(), workflows.DefaultFilename, workflows.NewsAPIToGCS)
	require.NoError(t, err)

	assert.Contains(t, wf.TaskByName("snowflake_copy_from_stage").SQL, "COPY INTO news_dev.PUBLIC.news_api_data")
}

const header = `
workflow "w" {
  schedule {
    every      = "1h"
    start_date = "2024-01-01T06:00:00Z"
  }
}
`

func TestLoadBytes_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "no workflow block",
			src:     `task "a" { action = "fetch" }`,
			wantErr: "expected exactly one workflow block, found 0",
		},
		{
			name:    "no tasks",
			src:     header,
			wantErr: "defines no tasks",
		},
		{
			name:    "unknown action",
			src:     header + `task "a" { action = "python" }`,
			wantErr: "task 'a': unknown action 'python'",
		},
		{
			name:    "sql task without sql",
			src:     header + `task "a" { action = "sql" }`,
			wantErr: "task 'a': sql is required",
		},
		{
			name:    "fetch task with sql",
			src:     header + "task \"a\" {\n  action = \"fetch\"\n  sql = \"SELECT 1\"\n}\n",
			wantErr: "task 'a': sql is not allowed",
		},
		{
			name:    "unknown variable",
			src:     header + "task \"a\" {\n  action = \"sql\"\n  sql = \"SELECT * FROM ${var.nope}\"\n}\n",
			wantErr: "task 'a': sql",
		},
		{
			name: "bad duration",
			src: `workflow "w" {
  schedule {
    every      = "daily"
    start_date = "2024-12-28"
  }
}`,
			wantErr: "schedule.every",
		},
		{
			name: "bad start date",
			src: `workflow "w" {
  schedule {
    every      = "24h"
    start_date = "28/12/2024"
  }
}`,
			wantErr: "schedule.start_date",
		},
		{
			name:    "missing schedule",
			src:     `workflow "w" {}`,
			wantErr: "schedule block is required",
		},
		{
			name:    "syntax error",
			src:     `workflow "w" {`,
			wantErr: "failed to parse HCL file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().LoadBytes(context.Background(), "test.hcl", []byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadBytes_TaskOverrides(t *testing.T) {
	src := header + `
task "a" {
  action      = "fetch"
  retries     = 3
  retry_delay = "30s"
}
`
	wf, err := NewLoader().LoadBytes(context.Background(), "test.hcl", []byte(src))
	require.NoError(t, err)

	a := wf.TaskByName("a")
	require.NotNil(t, a.Retries)
	require.NotNil(t, a.RetryDelay)
	assert.Equal(t, 3, *a.Retries)
	assert.Equal(t, 30*time.Second, *a.RetryDelay)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), wf.Schedule.StartDate)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_workflow.hcl"), []byte(header+`
vars {
  table = "raw"
}
`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tasks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks", "b.hcl"), []byte(`
task "load" {
  action     = "sql"
  sql        = "COPY INTO ${var.table}"
  depends_on = ["fetch"]
}
task "fetch" {
  action = "fetch"
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	wf, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, wf.Tasks, 2)
	assert.Equal(t, "COPY INTO raw", wf.TaskByName("load").SQL)
}

func TestLoad_DuplicateVariable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(header+"vars {\n  x = \"1\"\n}\ntask \"t\" {\n  action = \"fetch\"\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`vars { x = "2" }`), 0o644))

	_, err := NewLoader().Load(context.Background(), dir)
	assert.ErrorContains(t, err, "variable 'x' is defined more than once")
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)

	_, err = NewLoader().Load(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no .hcl workflow files found")
}
