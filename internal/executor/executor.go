package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/dag"
	"github.com/vk/newsdag/internal/fetch"
	"github.com/vk/newsdag/internal/node"
	"github.com/vk/newsdag/internal/nodestore"
	"github.com/vk/newsdag/internal/task"
	"github.com/vk/newsdag/internal/warehouse"
)

// Executor drives materialized runs to completion with a fixed-size worker
// pool. It is safe to execute several runs concurrently with one Executor.
type Executor struct {
	fetcher    fetch.Fetcher
	warehouse  warehouse.Warehouse
	numWorkers int
	now        func() time.Time
}

// New creates an Executor that dispatches fetch actions to fetcher and
// statement actions to wh.
func New(fetcher fetch.Fetcher, wh warehouse.Warehouse, numWorkers int) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{
		fetcher:    fetcher,
		warehouse:  wh,
		numWorkers: numWorkers,
		now:        time.Now,
	}
}

// SkippedError is recorded on tasks that never ran because an upstream task
// failed.
type SkippedError struct {
	Upstream string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of '%s'", e.Upstream)
}

// execution holds the state of a single Execute call.
type execution struct {
	*Executor
	run    *dag.Run
	states nodestore.Store
	wg     sync.WaitGroup
}

// Execute runs every task of run, recording transitions in states. A failed
// task skips its transitive dependents only; unrelated branches keep going.
// The returned error wraps the failures of every task that actually failed.
func (e *Executor) Execute(ctx context.Context, run *dag.Run, states nodestore.Store) error {
	ctx, logger := ctxlog.With(ctx, "dag_id", run.ExecContext.DAGID, "run_id", run.ID())
	x := &execution{Executor: e, run: run, states: states}

	nodes := run.Nodes()
	readyChan := make(chan *node.Node, len(nodes))

	logger.Debug("Initializing executor, finding root nodes...")
	for _, n := range run.Roots() {
		logger.Debug("Found root node.", "task", n.Name())
		readyChan <- n
	}

	x.wg.Add(len(nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go x.worker(ctx, readyChan, i)
	}

	logger.Debug("Waiting for all tasks to complete...")
	x.wg.Wait()
	close(readyChan)

	var failed []string
	var errs []error
	for _, n := range nodes {
		if n.Status() == task.StatusFailed {
			failed = append(failed, n.Name())
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), n.Error))
		}
	}
	if len(errs) > 0 {
		logger.Error("Run finished with failures.", "failed", failed)
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), errors.Join(errs...))
	}
	logger.Debug("All tasks completed.")
	return nil
}
