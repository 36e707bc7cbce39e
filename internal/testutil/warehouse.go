package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vk/newsdag/internal/stage"
	"github.com/vk/newsdag/internal/warehouse"
)

var (
	reCreateTemplate = regexp.MustCompile(`(?is)^CREATE\s+TABLE\s+IF\s+NOT\s+EXISTS\s+(\S+)\s+USING\s+TEMPLATE`)
	reCopyInto       = regexp.MustCompile(`(?is)^COPY\s+INTO\s+(\S+)\s+FROM\s+@(\S+)`)
	reCreateAs       = regexp.MustCompile(`(?is)^CREATE\s+OR\s+REPLACE\s+TABLE\s+(\S+)\s+AS\s+.*\sFROM\s+(\S+)`)
	reGroupBy        = regexp.MustCompile(`(?is)GROUP\s+BY\s+"(\w+)"`)
)

// Table is the content of a simulated table.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Warehouse simulates the subset of Snowflake the workflow relies on. It
// reads staged Parquet files from a stage.Store and understands:
//   - CREATE TABLE IF NOT EXISTS ... USING TEMPLATE (schema inferred from the
//     first staged file)
//   - COPY INTO ... FROM @stage, with per-table load history keyed by file
//     name and ETag, so unchanged files are never loaded twice
//   - CREATE OR REPLACE TABLE ... AS SELECT ... GROUP BY "source" | "author"
type Warehouse struct {
	store  stage.Store
	prefix string

	mu       sync.Mutex
	raw      map[string][]stage.Record
	columns  map[string][]stage.Column
	derived  map[string]Table
	history  map[string]map[string]bool
	executed []string
	failures map[string]*failure

	// BeforeExec, when set, is called with every statement before it runs.
	// Returning an error fails the statement.
	BeforeExec func(ctx context.Context, statement string) error
}

type failure struct {
	err       error
	remaining int
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// NewWarehouse creates a simulated warehouse whose stage resolves to prefix
// inside store.
func NewWarehouse(store stage.Store, prefix string) *Warehouse {
	return &Warehouse{
		store:    store,
		prefix:   prefix,
		raw:      make(map[string][]stage.Record),
		columns:  make(map[string][]stage.Column),
		derived:  make(map[string]Table),
		history:  make(map[string]map[string]bool),
		failures: make(map[string]*failure),
	}
}

// FailOn makes the next times statements containing substr fail with err.
// A times below 1 fails them forever.
func (w *Warehouse) FailOn(substr string, err error, times int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[substr] = &failure{err: err, remaining: times}
}

// Executed returns every statement received, in order.
func (w *Warehouse) Executed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.executed...)
}

// Exec implements warehouse.Warehouse.
func (w *Warehouse) Exec(ctx context.Context, statement string) (warehouse.Result, error) {
	start := time.Now()
	stmt := strings.TrimSpace(statement)

	if w.BeforeExec != nil {
		if err := w.BeforeExec(ctx, stmt); err != nil {
			return warehouse.Result{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return warehouse.Result{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.executed = append(w.executed, stmt)

	if err := w.injectedFailure(stmt); err != nil {
		return warehouse.Result{}, err
	}

	var rows int64
	var err error
	switch {
	case reCreateTemplate.MatchString(stmt):
		rows, err = w.createFromTemplate(ctx, name(reCreateTemplate.FindStringSubmatch(stmt)[1]))
	case reCopyInto.MatchString(stmt):
		rows, err = w.copyInto(ctx, name(reCopyInto.FindStringSubmatch(stmt)[1]))
	case reCreateAs.MatchString(stmt):
		m := reCreateAs.FindStringSubmatch(stmt)
		g := reGroupBy.FindStringSubmatch(stmt)
		if g == nil {
			return warehouse.Result{}, fmt.Errorf("simulated warehouse: no GROUP BY in %q", firstLine(stmt))
		}
		rows, err = w.createSummary(name(m[1]), name(m[2]), strings.ToLower(g[1]))
	default:
		return warehouse.Result{}, fmt.Errorf("simulated warehouse: unsupported statement %q", firstLine(stmt))
	}
	if err != nil {
		return warehouse.Result{}, err
	}
	return warehouse.Result{RowsAffected: rows, Duration: time.Since(start)}, nil
}

func (w *Warehouse) injectedFailure(stmt string) error {
	for substr, f := range w.failures {
		if !strings.Contains(stmt, substr) {
			continue
		}
		if f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				delete(w.failures, substr)
			}
		}
		return f.err
	}
	return nil
}

func (w *Warehouse) createFromTemplate(ctx context.Context, table string) (int64, error) {
	if _, ok := w.columns[table]; ok {
		return 0, nil
	}
	objects, err := w.store.List(ctx, w.prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, errors.New("simulated warehouse: INFER_SCHEMA found no files in stage")
	}
	data, err := w.store.Get(ctx, objects[0].Key)
	if err != nil {
		return 0, err
	}
	cols, err := stage.InferColumns(data)
	if err != nil {
		return 0, err
	}
	w.columns[table] = cols
	w.raw[table] = nil
	return 0, nil
}

func (w *Warehouse) copyInto(ctx context.Context, table string) (int64, error) {
	if _, ok := w.columns[table]; !ok {
		return 0, fmt.Errorf("simulated warehouse: table '%s' does not exist", table)
	}
	objects, err := w.store.List(ctx, w.prefix)
	if err != nil {
		return 0, err
	}
	if w.history[table] == nil {
		w.history[table] = make(map[string]bool)
	}

	var loaded int64
	for _, obj := range objects {
		id := obj.Key + "@" + obj.ETag
		if w.history[table][id] {
			continue
		}
		data, err := w.store.Get(ctx, obj.Key)
		if err != nil {
			return 0, err
		}
		recs, err := stage.DecodeBytes(data)
		if err != nil {
			return 0, err
		}
		w.raw[table] = append(w.raw[table], recs...)
		w.history[table][id] = true
		loaded += int64(len(recs))
	}
	return loaded, nil
}

type group struct {
	key      string
	count    int
	latest   time.Time
	earliest time.Time
	sources  map[string]bool
}

func (w *Warehouse) createSummary(target, source, by string) (int64, error) {
	recs, ok := w.raw[source]
	if !ok {
		return 0, fmt.Errorf("simulated warehouse: table '%s' does not exist", source)
	}

	groups := make(map[string]*group)
	for _, r := range recs {
		var key string
		switch by {
		case "source":
			key = r.Source
		case "author":
			if r.Author == nil {
				continue
			}
			key = *r.Author
		default:
			return 0, fmt.Errorf("simulated warehouse: cannot group by %q", by)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, latest: r.Timestamp, earliest: r.Timestamp, sources: make(map[string]bool)}
			groups[key] = g
		}
		g.count++
		if r.Timestamp.After(g.latest) {
			g.latest = r.Timestamp
		}
		if r.Timestamp.Before(g.earliest) {
			g.earliest = r.Timestamp
		}
		g.sources[r.Source] = true
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].key < ordered[j].key
	})

	var t Table
	if by == "source" {
		t.Columns = []string{"NEWS_SOURCE", "ARTICLE_COUNT", "LATEST_ARTICLE_DATE", "EARLIEST_ARTICLE_DATE"}
	} else {
		t.Columns = []string{"author", "ARTICLE_COUNT", "LATEST_ARTICLE_DATE", "DISTINCT_SOURCES"}
	}
	for _, g := range ordered {
		row := []string{g.key, strconv.Itoa(g.count), formatTime(g.latest)}
		if by == "source" {
			row = append(row, formatTime(g.earliest))
		} else {
			row = append(row, strconv.Itoa(len(g.sources)))
		}
		t.Rows = append(t.Rows, row)
	}
	w.derived[target] = t
	return int64(len(t.Rows)), nil
}

// Table returns a snapshot of a table. Raw tables are rendered with the
// inferred columns.
func (w *Warehouse) Table(tableName string) (Table, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := name(tableName)
	if t, ok := w.derived[key]; ok {
		return Table{Columns: append([]string(nil), t.Columns...), Rows: append([][]string(nil), t.Rows...)}, true
	}
	cols, ok := w.columns[key]
	if !ok {
		return Table{}, false
	}
	var t Table
	for _, c := range cols {
		t.Columns = append(t.Columns, c.Name)
	}
	for _, r := range w.raw[key] {
		author := "NULL"
		if r.Author != nil {
			author = *r.Author
		}
		t.Rows = append(t.Rows, []string{r.NewsTitle, formatTime(r.Timestamp), r.URLSource, r.Content, r.Source, author, r.URLToImage})
	}
	return t, true
}

// Dump renders a table as tab-separated text, header first. Missing tables
// render as the empty string.
func (w *Warehouse) Dump(tableName string) string {
	t, ok := w.Table(tableName)
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, "\t"))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

// RowCount returns the number of rows in a table, or -1 if it does not exist.
func (w *Warehouse) RowCount(tableName string) int {
	t, ok := w.Table(tableName)
	if !ok {
		return -1
	}
	return len(t.Rows)
}

func name(s string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ";"))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
