package dag

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/newsdag/internal/config"
	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/task"
)

// Build constructs a Graph from a loaded workflow definition. Every
// definition error (duplicate names, unknown dependencies, cycles) surfaces
// here, before any run can be materialized.
func Build(ctx context.Context, wf *config.Workflow) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if wf == nil {
		return nil, errors.New("workflow definition is nil")
	}
	logger.Debug("Building task graph.", "workflow", wf.ID, "tasks", len(wf.Tasks))

	g := New(wf.ID)
	for _, t := range wf.Tasks {
		action, err := actionFor(t)
		if err != nil {
			return nil, err
		}
		if _, err := g.Define(t.Name, action, policyFor(wf.Defaults, t)); err != nil {
			return nil, fmt.Errorf("failed to define task: %w", err)
		}
	}

	for _, t := range wf.Tasks {
		for _, up := range t.DependsOn {
			if err := g.AddDependency(up, t.Name); err != nil {
				return nil, fmt.Errorf("task '%s': %w", t.Name, err)
			}
			logger.Debug("Dependency added.", "upstream", up, "downstream", t.Name)
		}
	}

	logger.Debug("Task graph built.", "order", g.TopologicalOrder())
	return g, nil
}

func actionFor(t *config.Task) (task.Action, error) {
	switch t.Action {
	case config.ActionFetch:
		return task.InvokeFetch{}, nil
	case config.ActionSQL:
		return task.ExecuteStatement{SQL: t.SQL}, nil
	default:
		return nil, fmt.Errorf("task '%s': unknown action '%s'", t.Name, t.Action)
	}
}

func policyFor(d config.Defaults, t *config.Task) task.Policy {
	p := task.Policy{
		Retries:        d.Retries,
		RetryDelay:     d.RetryDelay,
		EmailOnFailure: d.EmailOnFailure,
		EmailOnRetry:   d.EmailOnRetry,
		DependsOnPast:  d.DependsOnPast,
	}
	if t.Retries != nil {
		p.Retries = *t.Retries
	}
	if t.RetryDelay != nil {
		p.RetryDelay = *t.RetryDelay
	}
	return p
}
