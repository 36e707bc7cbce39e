package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/node"
	"github.com/vk/newsdag/internal/task"
)

// runNode executes a node's action, retrying according to its policy with a
// constant delay between attempts.
func (x *execution) runNode(ctx context.Context, n *node.Node) (any, error) {
	logger := ctxlog.FromContext(ctx)
	policy := n.Task.Policy()

	var result any
	op := func() error {
		attempt, err := x.states.IncAttempts(ctx, n.Name())
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to record attempt: %w", err))
		}
		n.Attempts = attempt

		out, err := x.dispatch(ctx, n.Task.Action(), x.run.ExecContext)
		if err != nil {
			return err
		}
		result = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("🔁 Task attempt failed, retrying.", "attempt", n.Attempts, "max_attempts", policy.MaxAttempts(), "retry_in", wait, "error", err)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.RetryDelay), uint64(policy.Retries)),
		ctx,
	)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return result, nil
}

// dispatch maps an action variant onto its collaborator.
func (x *execution) dispatch(ctx context.Context, action task.Action, ec task.ExecContext) (any, error) {
	switch a := action.(type) {
	case task.InvokeFetch:
		if x.fetcher == nil {
			return nil, backoff.Permanent(errors.New("no fetcher configured"))
		}
		return x.fetcher.Fetch(ctx, ec)
	case task.ExecuteStatement:
		if x.warehouse == nil {
			return nil, backoff.Permanent(errors.New("no warehouse configured"))
		}
		return x.warehouse.Exec(ctx, a.SQL)
	default:
		return nil, backoff.Permanent(fmt.Errorf("unsupported action %T", action))
	}
}
