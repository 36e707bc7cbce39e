// Package fetch implements the workflow's fetch routine: pull one day of
// articles from NewsAPI, encode them as Parquet and stage them for the
// warehouse.
package fetch

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/newsapi"
	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/task"
)

// Fetcher is what an InvokeFetch action calls.
type Fetcher interface {
	Fetch(ctx context.Context, ec task.ExecContext) (Result, error)
}

// Result describes the staged batch.
type Result struct {
	Key        string `json:"key"`
	Rows       int    `json:"rows"`
	Bytes      int64  `json:"bytes"`
	ETag       string `json:"etag"`
	WindowFrom string `json:"window_from"`
	WindowTo   string `json:"window_to"`
}

// ArticleSource is the part of the NewsAPI client the fetcher needs.
type ArticleSource interface {
	Everything(ctx context.Context, q newsapi.Query) ([]newsapi.Article, error)
}

// Options configure NewsToStage.
type Options struct {
	Query    string
	PageSize int
	MaxPages int
	// Prefix is the object-key prefix inside the bucket.
	Prefix string
	// Window is the length of the interval starting at the logical date whose
	// articles are requested.
	Window time.Duration
}

// NewsToStage fetches articles and writes them to a stage.Store.
type NewsToStage struct {
	source ArticleSource
	store  stage.Store
	opts   Options
}

// New creates a NewsToStage fetcher.
func New(source ArticleSource, store stage.Store, opts Options) *NewsToStage {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.Query == "" {
		opts.Query = "apple"
	}
	return &NewsToStage{source: source, store: store, opts: opts}
}

// ObjectKey returns the staged object key for a logical date. The key is
// stable per date so that re-running a day overwrites its own file.
func ObjectKey(prefix string, logicalDate time.Time) string {
	name := fmt.Sprintf("run_%s.parquet", logicalDate.UTC().Format("2006-01-02"))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Fetch implements Fetcher.
func (f *NewsToStage) Fetch(ctx context.Context, ec task.ExecContext) (Result, error) {
	logger := ctxlog.FromContext(ctx)

	// A run covers [LogicalDate, LogicalDate+Window).
	from := ec.LogicalDate
	if from.IsZero() {
		from = ec.ScheduledTime.Add(-f.opts.Window)
	}
	to := from.Add(f.opts.Window)

	articles, err := f.source.Everything(ctx, newsapi.Query{
		Q:        f.opts.Query,
		From:     from,
		To:       to,
		Language: "en",
		SortBy:   "popularity",
		PageSize: f.opts.PageSize,
		MaxPages: f.opts.MaxPages,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch articles: %w", err)
	}
	logger.Info("📰 Articles fetched.", "count", len(articles), "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))

	records := ToRecords(articles)
	data, err := stage.EncodeBytes(records)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode articles: %w", err)
	}

	key := ObjectKey(f.opts.Prefix, from)
	obj, err := f.store.Put(ctx, key, data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stage articles: %w", err)
	}
	logger.Info("Articles staged.", "key", obj.Key, "rows", len(records), "bytes", obj.Size)

	return Result{
		Key:        obj.Key,
		Rows:       len(records),
		Bytes:      obj.Size,
		ETag:       obj.ETag,
		WindowFrom: from.Format(time.DateOnly),
		WindowTo:   to.Format(time.DateOnly),
	}, nil
}

// ToRecords maps API articles onto staged rows. Removed articles, which the
// API returns with the placeholder title "[Removed]", are dropped.
func ToRecords(articles []newsapi.Article) []stage.Record {
	records := make([]stage.Record, 0, len(articles))
	for _, a := range articles {
		if a.Title == "[Removed]" {
			continue
		}
		records = append(records, stage.Record{
			NewsTitle:  a.Title,
			Timestamp:  a.PublishedAt.UTC(),
			URLSource:  a.URL,
			Content:    deref(a.Content),
			Source:     a.Source.Name,
			Author:     nonEmpty(a.Author),
			URLToImage: deref(a.URLToImage),
		})
	}
	return records
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
