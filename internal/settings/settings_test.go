package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/warehouse"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	s, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, NewsAPIConfig{BaseURL: "https://newsapi.org", Query: "apple", PageSize: 100, MaxPages: 1}, s.NewsAPI)
	assert.Equal(t, StageConfig{
		Endpoint: "storage.googleapis.com",
		Region:   "auto",
		Bucket:   "snowflake_projects",
		Prefix:   "news_data_analysis/parquet_files",
		UseSSL:   true,
	}, s.Stage)
	assert.Equal(t, warehouse.DriverSnowflake, s.Warehouse.Driver)
	assert.Empty(t, s.RunStoreDSN)

	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEWSAPI_KEY is required")
	assert.Contains(t, err.Error(), "STAGE_ACCESS_KEY and STAGE_SECRET_KEY are required")
	assert.Contains(t, err.Error(), "WAREHOUSE_DSN is required")
}

func TestFromEnv_Overrides(t *testing.T) {
	s, err := FromEnv(env(map[string]string{
		"NEWSAPI_KEY":       " secret ",
		"NEWSAPI_QUERY":     "tesla",
		"NEWSAPI_PAGE_SIZE": "20",
		"STAGE_ENDPOINT":    "localhost:9000",
		"STAGE_ACCESS_KEY":  "ak",
		"STAGE_SECRET_KEY":  "sk",
		"STAGE_USE_SSL":     "false",
		"WAREHOUSE_DRIVER":  "PGX",
		"WAREHOUSE_DSN":     "postgres://localhost/news",
		"RUNSTORE_PG_DSN":   "postgres://localhost/runs",
	}))
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, "secret", s.NewsAPI.Key)
	assert.Equal(t, "tesla", s.NewsAPI.Query)
	assert.Equal(t, 20, s.NewsAPI.PageSize)
	assert.Equal(t, stage.S3Config{
		Endpoint:  "localhost:9000",
		Region:    "auto",
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "snowflake_projects",
		UseSSL:    false,
	}, s.Stage.S3Config())
	assert.Equal(t, warehouse.Config{Driver: warehouse.DriverPgx, DSN: "postgres://localhost/news"}, s.Warehouse.Config())
	assert.Equal(t, "postgres://localhost/runs", s.RunStoreDSN)
}

func TestFromEnv_Invalid(t *testing.T) {
	testCases := map[string]map[string]string{
		"page size not a number": {"NEWSAPI_PAGE_SIZE": "many"},
		"page size too large":    {"NEWSAPI_PAGE_SIZE": "500"},
		"max pages":              {"NEWSAPI_MAX_PAGES": "x"},
		"ssl flag":               {"STAGE_USE_SSL": "maybe"},
		"driver":                 {"WAREHOUSE_DRIVER": "mysql"},
	}
	for name, vars := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("NEWSDAG_TEST_ONLY=1\nSTAGE_BUCKET=from-file\nSTAGE_PREFIX=file/prefix\n"), 0o600))
	t.Setenv("STAGE_BUCKET", "from-env")
	os.Unsetenv("STAGE_PREFIX")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Stage.Bucket, "process environment wins over the file")
	assert.Equal(t, "file/prefix", s.Stage.Prefix)

	_, ok := os.LookupEnv("NEWSDAG_TEST_ONLY")
	assert.False(t, ok, "loading must not modify the process environment")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
