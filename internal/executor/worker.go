package executor

import (
	"context"
	"log/slog"

	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/node"
	"github.com/vk/newsdag/internal/task"
)

// worker is the core processing loop for a single concurrent worker.
func (x *execution) worker(ctx context.Context, readyChan chan *node.Node, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		nodeCtx, workerLogger := ctxlog.With(ctx, "workerID", workerID, "task", n.Name())

		if ctx.Err() != nil {
			workerLogger.Warn("Context canceled, failing task without running it.")
			x.fail(nodeCtx, n, ctx.Err())
			x.skipDependents(nodeCtx, n, n.Name())
			x.wg.Done()
			continue
		}

		workerLogger.Info("▶️ Task started.", "action", n.Task.Action().Kind().String())
		n.Start(x.now())
		x.record(nodeCtx, workerLogger, n.Name(), task.StatusRunning)

		result, err := x.runNode(nodeCtx, n)
		if err != nil {
			workerLogger.Error("❌ Task failed.", "attempts", n.Attempts, "error", err)
			x.fail(nodeCtx, n, err)
			x.skipDependents(nodeCtx, n, n.Name())
			x.wg.Done()
			continue
		}

		n.Succeed(result, x.now())
		if err := x.states.SetResult(nodeCtx, n.Name(), result); err != nil {
			workerLogger.Warn("Failed to record task result.", "error", err)
		}
		x.record(nodeCtx, workerLogger, n.Name(), task.StatusSucceeded)
		workerLogger.Info("✅ Task succeeded.", "attempts", n.Attempts, "duration", n.FinishedAt.Sub(n.StartedAt))

		for _, dependent := range n.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent task.", "dependent", dependent.Name())
				readyChan <- dependent
			}
		}

		x.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

func (x *execution) fail(ctx context.Context, n *node.Node, err error) {
	n.Fail(err, x.now())
	logger := ctxlog.FromContext(ctx)
	if serr := x.states.SetError(ctx, n.Name(), err); serr != nil {
		logger.Warn("Failed to record task error.", "error", serr)
	}
	x.record(ctx, logger, n.Name(), task.StatusFailed)
}

// skipDependents recursively marks every downstream task of n as skipped.
// root names the task whose failure caused the skip.
func (x *execution) skipDependents(ctx context.Context, n *node.Node, root string) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.Dependents {
		skipErr := &SkippedError{Upstream: root}
		if !dependent.Skip(skipErr, &x.wg) {
			continue
		}
		logger.Warn("Skipping dependent task due to upstream failure.", "dependent", dependent.Name(), "upstream", root)
		if err := x.states.SetError(ctx, dependent.Name(), skipErr); err != nil {
			logger.Warn("Failed to record skip reason.", "error", err)
		}
		x.record(ctx, logger, dependent.Name(), task.StatusSkipped)
		x.skipDependents(ctx, dependent, root)
	}
}

func (x *execution) record(ctx context.Context, logger *slog.Logger, name string, status task.Status) {
	if err := x.states.SetStatus(ctx, name, status); err != nil {
		logger.Warn("Failed to record task status.", "status", status, "error", err)
	}
}
