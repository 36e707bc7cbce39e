// Package settings reads deployment settings (credentials, endpoints and
// connection strings) from the environment and optional .env files.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/warehouse"
)

// Settings holds everything the collaborators need to reach the outside world.
type Settings struct {
	NewsAPI     NewsAPIConfig
	Stage       StageConfig
	Warehouse   WarehouseConfig
	RunStoreDSN string
}

type NewsAPIConfig struct {
	Key      string
	BaseURL  string
	Query    string
	PageSize int
	MaxPages int
}

type StageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Config converts the stage settings for stage.NewS3Store.
func (c StageConfig) S3Config() stage.S3Config {
	return stage.S3Config{
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		UseSSL:    c.UseSSL,
	}
}

type WarehouseConfig struct {
	Driver string
	DSN    string
}

// Config converts the warehouse settings for warehouse.Open.
func (c WarehouseConfig) Config() warehouse.Config {
	return warehouse.Config{Driver: c.Driver, DSN: c.DSN}
}

// Load reads settings from the process environment, falling back to values
// found in files. Without files, ./.env is read if it exists.
func Load(files ...string) (*Settings, error) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{".env"}
	}

	fromFiles := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if !explicit && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read env file %s: %w", f, err)
		}
		for k, v := range values {
			fromFiles[k] = v
		}
	}

	return FromEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fromFiles[key]
	})
}

// FromEnv builds Settings from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Settings, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	pageSize, err := intValue(get("NEWSAPI_PAGE_SIZE"), 100)
	if err != nil {
		return nil, fmt.Errorf("NEWSAPI_PAGE_SIZE: %w", err)
	}
	maxPages, err := intValue(get("NEWSAPI_MAX_PAGES"), 1)
	if err != nil {
		return nil, fmt.Errorf("NEWSAPI_MAX_PAGES: %w", err)
	}
	useSSL, err := boolValue(get("STAGE_USE_SSL"), true)
	if err != nil {
		return nil, fmt.Errorf("STAGE_USE_SSL: %w", err)
	}

	s := &Settings{
		NewsAPI: NewsAPIConfig{
			Key:      get("NEWSAPI_KEY"),
			BaseURL:  firstNonEmpty(get("NEWSAPI_BASE_URL"), "https://newsapi.org"),
			Query:    firstNonEmpty(get("NEWSAPI_QUERY"), "apple"),
			PageSize: pageSize,
			MaxPages: maxPages,
		},
		Stage: StageConfig{
			Endpoint:  firstNonEmpty(get("STAGE_ENDPOINT"), "storage.googleapis.com"),
			Region:    firstNonEmpty(get("STAGE_REGION"), "auto"),
			AccessKey: get("STAGE_ACCESS_KEY"),
			SecretKey: get("STAGE_SECRET_KEY"),
			Bucket:    firstNonEmpty(get("STAGE_BUCKET"), "snowflake_projects"),
			Prefix:    firstNonEmpty(get("STAGE_PREFIX"), "news_data_analysis/parquet_files"),
			UseSSL:    useSSL,
		},
		Warehouse: WarehouseConfig{
			Driver: strings.ToLower(firstNonEmpty(get("WAREHOUSE_DRIVER"), warehouse.DriverSnowflake)),
			DSN:    get("WAREHOUSE_DSN"),
		},
		RunStoreDSN: get("RUNSTORE_PG_DSN"),
	}
	if s.NewsAPI.PageSize < 1 || s.NewsAPI.PageSize > 100 {
		return nil, fmt.Errorf("NEWSAPI_PAGE_SIZE must be between 1 and 100, got %d", s.NewsAPI.PageSize)
	}
	switch s.Warehouse.Driver {
	case warehouse.DriverSnowflake, warehouse.DriverPgx:
	default:
		return nil, fmt.Errorf("WAREHOUSE_DRIVER must be %q or %q, got %q", warehouse.DriverSnowflake, warehouse.DriverPgx, s.Warehouse.Driver)
	}
	return s, nil
}

// Validate reports every setting required to talk to the real services.
func (s *Settings) Validate() error {
	var errs []error
	if s.NewsAPI.Key == "" {
		errs = append(errs, errors.New("NEWSAPI_KEY is required"))
	}
	if s.Stage.AccessKey == "" || s.Stage.SecretKey == "" {
		errs = append(errs, errors.New("STAGE_ACCESS_KEY and STAGE_SECRET_KEY are required"))
	}
	if s.Warehouse.DSN == "" {
		errs = append(errs, errors.New("WAREHOUSE_DSN is required"))
	}
	return errors.Join(errs...)
}

func intValue(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func boolValue(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
