package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vk/newsdag/internal/config"
	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/dag"
	"github.com/vk/newsdag/internal/executor"
	"github.com/vk/newsdag/internal/fetch"
	"github.com/vk/newsdag/internal/newsapi"
	"github.com/vk/newsdag/internal/runstore"
	"github.com/vk/newsdag/internal/scheduler"
	"github.com/vk/newsdag/internal/settings"
	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/warehouse"
	"github.com/vk/newsdag/workflows"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	workflow   *config.Workflow
	graph      *dag.Graph
	scheduler  *scheduler.Scheduler
	runs       runstore.Store
	httpServer *http.Server
	closers    []func() error
}

// Option overrides a collaborator the App would otherwise build from
// settings.
type Option func(*options)

type options struct {
	settings   *settings.Settings
	fetcher    fetch.Fetcher
	stageStore stage.Store
	newsClient fetch.ArticleSource
	warehouse  warehouse.Warehouse
	runs       runstore.Store
	now        func() time.Time
	timer      scheduler.TimerFunc
}

// WithSettings skips reading settings from the environment.
func WithSettings(s *settings.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithFetcher replaces the whole fetch collaborator.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithStageStore replaces the object store the fetcher writes to.
func WithStageStore(s stage.Store) Option {
	return func(o *options) { o.stageStore = s }
}

// WithArticleSource replaces the NewsAPI client used by the fetcher.
func WithArticleSource(s fetch.ArticleSource) Option {
	return func(o *options) { o.newsClient = s }
}

// WithWarehouse replaces the warehouse connection.
func WithWarehouse(w warehouse.Warehouse) Option {
	return func(o *options) { o.warehouse = w }
}

// WithRunStore replaces the run history store.
func WithRunStore(r runstore.Store) Option {
	return func(o *options) { o.runs = r }
}

// WithClock replaces the scheduler's clock and timers.
func WithClock(now func() time.Time, timer scheduler.TimerFunc) Option {
	return func(o *options) {
		o.now = now
		o.timer = timer
	}
}

// NewApp is the constructor for the main application. It loads and builds
// the workflow and connects every collaborator that was not supplied through
// an Option. Any failure is returned; nothing is left open on error.
func NewApp(ctx context.Context, outW io.Writer, appConfig *Config, loader config.Loader, opts ...Option) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{ctx: ctx, outW: outW, logger: logger, config: appConfig}

	wf, err := a.loadWorkflow(ctx, loader)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	a.workflow = wf
	logger.Debug("Workflow loaded and translated into unified model.", "workflow", wf.ID)

	a.graph, err = dag.Build(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to build task graph: %w", err)
	}

	if err := a.wire(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) loadWorkflow(ctx context.Context, loader config.Loader) (*config.Workflow, error) {
	if a.config.WorkflowPath == "" {
		return loader.LoadBytes(ctx, workflows.DefaultFilename, workflows.NewsAPIToGCS)
	}
	return loader.Load(ctx, a.config.WorkflowPath)
}

// wire builds the collaborators, executor and scheduler.
func (a *App) wire(ctx context.Context, o *options) error {
	logger := ctxlog.FromContext(ctx)

	needSettings := o.fetcher == nil || o.warehouse == nil || o.runs == nil
	if needSettings && o.settings == nil {
		s, err := settings.Load(envFiles(a.config.EnvFile)...)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		o.settings = s
	}

	if o.fetcher == nil && o.newsClient == nil && o.stageStore == nil && o.warehouse == nil {
		if err := o.settings.Validate(); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
	}

	fetcher := o.fetcher
	if fetcher == nil {
		source := o.newsClient
		if source == nil {
			if o.settings.NewsAPI.Key == "" {
				return errors.New("NEWSAPI_KEY is required")
			}
			source = newsapi.NewClient(o.settings.NewsAPI.Key, newsapi.WithBaseURL(o.settings.NewsAPI.BaseURL))
		}
		store := o.stageStore
		if store == nil {
			s3, err := stage.NewS3Store(o.settings.Stage.S3Config())
			if err != nil {
				return fmt.Errorf("failed to create stage store: %w", err)
			}
			store = s3
		}
		fetcher = fetch.New(source, store, fetch.Options{
			Query:    o.settings.NewsAPI.Query,
			PageSize: o.settings.NewsAPI.PageSize,
			MaxPages: o.settings.NewsAPI.MaxPages,
			Prefix:   o.settings.Stage.Prefix,
			Window:   a.workflow.Schedule.Every,
		})
	}

	wh := o.warehouse
	if wh == nil {
		sqlWh, err := warehouse.Open(ctx, o.settings.Warehouse.Config())
		if err != nil {
			return fmt.Errorf("failed to connect to warehouse: %w", err)
		}
		a.closers = append(a.closers, sqlWh.Close)
		wh = sqlWh
	}

	runs := o.runs
	if runs == nil {
		if dsn := o.settings.RunStoreDSN; dsn != "" {
			pg, err := runstore.NewPostgres(ctx, dsn)
			if err != nil {
				return fmt.Errorf("failed to connect to run history: %w", err)
			}
			a.closers = append(a.closers, pg.Close)
			cached, err := runstore.NewCachedStore(pg, runstore.DefaultCacheSize)
			if err != nil {
				return err
			}
			runs = cached
		} else {
			logger.Warn("RUNSTORE_PG_DSN is not set, run history is kept in memory only.")
			runs = runstore.NewMemoryStore()
		}
	}
	a.runs = runs

	exec := executor.New(fetcher, wh, a.config.WorkerCount)
	sched := a.workflow.Schedule
	a.scheduler = scheduler.New(a.graph, exec, runs,
		scheduler.Interval{Start: sched.StartDate, Every: sched.Every},
		scheduler.WithCatchup(sched.Catchup),
		scheduler.WithClock(o.now, o.timer),
	)
	logger.Debug("Collaborators wired.", "workers", a.config.WorkerCount)
	return nil
}

func envFiles(path string) []string {
	if path == "" {
		return nil
	}
	return []string{path}
}

// Workflow returns the loaded workflow definition.
func (a *App) Workflow() *config.Workflow {
	return a.workflow
}

// Graph returns the task graph built from the workflow.
func (a *App) Graph() *dag.Graph {
	return a.graph
}

// Runs returns the run history store.
func (a *App) Runs() runstore.Store {
	return a.runs
}

// Close releases connections opened by NewApp.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
