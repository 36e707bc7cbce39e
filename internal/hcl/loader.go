package hcl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/newsdag/internal/config"
	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/fsutil"
	"github.com/vk/newsdag/internal/task"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	overrides map[string]string
}

var _ config.Loader = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader)

// WithVars overrides values of the `vars` block, e.g. to point the SQL at a
// different database.
func WithVars(vars map[string]string) Option {
	return func(l *Loader) {
		for k, v := range vars {
			l.overrides[k] = v
		}
	}
}

// NewLoader creates a new HCL loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{overrides: make(map[string]string)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load finds every .hcl file under paths, which may be files or directories,
// and merges them into one workflow.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Workflow, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat workflow path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to find workflow files in %s: %w", p, err)
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, errors.New("no .hcl workflow files found")
	}
	logger.Debug("Loading workflow files.", "files", files)

	parser := hclparse.NewParser()
	var parsed []*hclFile
	for _, filename := range files {
		f, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
		}
		decoded, err := decodeFile(filename, f)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, decoded)
	}
	return l.translate(ctx, parsed)
}

// LoadBytes parses a single in-memory definition.
func (l *Loader) LoadBytes(ctx context.Context, filename string, src []byte) (*config.Workflow, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	decoded, err := decodeFile(filename, f)
	if err != nil {
		return nil, err
	}
	return l.translate(ctx, []*hclFile{decoded})
}

func decodeFile(filename string, f *hcl.File) (*hclFile, error) {
	var out hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &out); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &out, nil
}

// translate merges decoded files into the agnostic model.
func (l *Loader) translate(ctx context.Context, files []*hclFile) (*config.Workflow, error) {
	logger := ctxlog.FromContext(ctx)

	var workflows []*hclWorkflow
	var tasks []*hclTask
	var vars []*hclVars
	for _, f := range files {
		workflows = append(workflows, f.Workflows...)
		tasks = append(tasks, f.Tasks...)
		vars = append(vars, f.Vars...)
	}
	if len(workflows) != 1 {
		return nil, fmt.Errorf("expected exactly one workflow block, found %d", len(workflows))
	}

	evalCtx, err := l.evalContext(vars)
	if err != nil {
		return nil, err
	}

	wf, err := translateWorkflow(workflows[0])
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		ct, err := translateTask(t, evalCtx)
		if err != nil {
			return nil, err
		}
		wf.Tasks = append(wf.Tasks, ct)
	}
	if len(wf.Tasks) == 0 {
		return nil, fmt.Errorf("workflow '%s' defines no tasks", wf.ID)
	}

	logger.Debug("Workflow loaded.", "workflow", wf.ID, "tasks", len(wf.Tasks))
	return wf, nil
}

// evalContext exposes the merged vars blocks, with loader overrides applied,
// as the `var` object.
func (l *Loader) evalContext(blocks []*hclVars) (*hcl.EvalContext, error) {
	values := make(map[string]cty.Value)
	for _, b := range blocks {
		attrs, diags := b.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid vars block: %w", diags)
		}
		for name, attr := range attrs {
			if _, dup := values[name]; dup {
				return nil, fmt.Errorf("variable '%s' is defined more than once", name)
			}
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("variable '%s': %w", name, diags)
			}
			if v.IsNull() || v.Type() != cty.String {
				return nil, fmt.Errorf("variable '%s' must be a string", name)
			}
			values[name] = v
		}
	}
	for name, v := range l.overrides {
		values[name] = cty.StringVal(v)
	}

	obj := cty.EmptyObjectVal
	if len(values) > 0 {
		obj = cty.ObjectVal(values)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"var": obj}}, nil
}

func translateWorkflow(w *hclWorkflow) (*config.Workflow, error) {
	if strings.TrimSpace(w.ID) == "" {
		return nil, errors.New("workflow id must not be empty")
	}
	wf := &config.Workflow{
		ID:          w.ID,
		Description: w.Description,
		Owner:       w.Owner,
	}

	if w.Schedule == nil {
		return nil, fmt.Errorf("workflow '%s': schedule block is required", w.ID)
	}
	every, err := parseDuration(w.Schedule.Every)
	if err != nil {
		return nil, fmt.Errorf("workflow '%s': schedule.every: %w", w.ID, err)
	}
	start, err := parseDate(w.Schedule.StartDate)
	if err != nil {
		return nil, fmt.Errorf("workflow '%s': schedule.start_date: %w", w.ID, err)
	}
	wf.Schedule = config.Schedule{Every: every, StartDate: start, Catchup: w.Schedule.Catchup}

	def := task.DefaultPolicy()
	wf.Defaults = config.Defaults{Retries: def.Retries, RetryDelay: def.RetryDelay}
	if d := w.Defaults; d != nil {
		if d.Retries != nil {
			wf.Defaults.Retries = *d.Retries
		}
		if d.RetryDelay != nil {
			delay, err := parseDuration(*d.RetryDelay)
			if err != nil {
				return nil, fmt.Errorf("workflow '%s': defaults.retry_delay: %w", w.ID, err)
			}
			wf.Defaults.RetryDelay = delay
		}
		wf.Defaults.EmailOnFailure = d.EmailOnFailure
		wf.Defaults.EmailOnRetry = d.EmailOnRetry
		wf.Defaults.DependsOnPast = d.DependsOnPast
	}
	if wf.Defaults.Retries < 0 {
		return nil, fmt.Errorf("workflow '%s': defaults.retries must not be negative", w.ID)
	}
	return wf, nil
}

func translateTask(t *hclTask, evalCtx *hcl.EvalContext) (*config.Task, error) {
	ct := &config.Task{
		Name:      t.Name,
		Action:    t.Action,
		DependsOn: t.DependsOn,
		Retries:   t.Retries,
	}

	sqlVal, diags := t.SQL.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("task '%s': sql: %w", t.Name, diags)
	}
	hasSQL := !sqlVal.IsNull()
	if hasSQL {
		if sqlVal.Type() != cty.String {
			return nil, fmt.Errorf("task '%s': sql must be a string", t.Name)
		}
		ct.SQL = strings.TrimSpace(sqlVal.AsString())
	}

	switch t.Action {
	case config.ActionFetch:
		if hasSQL {
			return nil, fmt.Errorf("task '%s': sql is not allowed for action '%s'", t.Name, t.Action)
		}
	case config.ActionSQL:
		if ct.SQL == "" {
			return nil, fmt.Errorf("task '%s': sql is required for action '%s'", t.Name, t.Action)
		}
	default:
		return nil, fmt.Errorf("task '%s': unknown action '%s'", t.Name, t.Action)
	}

	if t.RetryDelay != nil {
		delay, err := parseDuration(*t.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("task '%s': retry_delay: %w", t.Name, err)
		}
		ct.RetryDelay = &delay
	}
	sort.Strings(ct.DependsOn)
	return ct, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}

// parseDate accepts a plain date (UTC midnight) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}
