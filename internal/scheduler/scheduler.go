package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"
	"github.com/vk/newsdag/internal/dag"
	"github.com/vk/newsdag/internal/inmemorystore"
	"github.com/vk/newsdag/internal/nodestore"
	"github.com/vk/newsdag/internal/runstore"
	"github.com/vk/newsdag/internal/task"
)

// Runner executes a materialized run. *executor.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, run *dag.Run, states nodestore.Store) error
}

// TimerFunc returns a channel that fires after d and a function stopping it.
type TimerFunc func(d time.Duration) (<-chan time.Time, func() bool)

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Scheduler triggers runs of one graph on an Interval.
type Scheduler struct {
	graph    *dag.Graph
	runner   Runner
	runs     runstore.Store
	interval Interval
	catchup  bool

	now   func() time.Time
	timer TimerFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCatchup makes Run execute every missed interval on start instead of
// only the latest one.
func WithCatchup(catchup bool) Option {
	return func(s *Scheduler) { s.catchup = catchup }
}

// WithClock replaces the wall clock and timers, for tests.
func WithClock(now func() time.Time, timer TimerFunc) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
		if timer != nil {
			s.timer = timer
		}
	}
}

// New creates a Scheduler. runs may be nil, in which case history is kept in
// memory.
func New(g *dag.Graph, runner Runner, runs runstore.Store, interval Interval, opts ...Option) *Scheduler {
	if runs == nil {
		runs = runstore.NewMemoryStore()
	}
	s := &Scheduler{
		graph:    g,
		runner:   runner,
		runs:     runs,
		interval: interval,
		now:      time.Now,
		timer:    realTimer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Runs returns the run history the scheduler writes to.
func (s *Scheduler) Runs() runstore.Store {
	return s.runs
}

// LatestLogicalDate returns the logical date of the most recent completed
// interval, or the start of the current one if none has completed yet.
func (s *Scheduler) LatestLogicalDate() time.Time {
	if w, ok := s.interval.LatestCompleted(s.now().UTC()); ok {
		return w.Start
	}
	return s.interval.Start
}

// Run triggers runs until ctx is cancelled. A failed run is recorded and
// logged; it never stops the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval.Every <= 0 {
		return errors.New("schedule interval must be positive")
	}
	ctx, logger := ctxlog.With(ctx, "dag_id", s.graph.ID())
	logger.Info("Scheduler started.", "every", s.interval.Every.String(), "start", s.interval.Start, "catchup", s.catchup)

	now := s.now().UTC()
	for _, w := range s.pending(now) {
		if ctx.Err() != nil {
			return nil
		}
		s.trigger(ctx, w)
	}

	last := now
	for {
		next := s.interval.Next(last)
		delay := next.Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		logger.Debug("Waiting for next trigger.", "next", next, "delay", delay.String())

		fire, stop := s.timer(delay)
		select {
		case <-ctx.Done():
			stop()
			logger.Info("Scheduler stopped.")
			return nil
		case <-fire:
		}

		s.trigger(ctx, Window{Start: next.Add(-s.interval.Every), End: next})
		last = next
	}
}

// pending returns the windows to run on start.
func (s *Scheduler) pending(now time.Time) []Window {
	if s.catchup {
		return s.interval.Completed(now)
	}
	if w, ok := s.interval.LatestCompleted(now); ok {
		return []Window{w}
	}
	return nil
}

func (s *Scheduler) trigger(ctx context.Context, w Window) {
	logger := ctxlog.FromContext(ctx)
	runID := task.NewRunID(task.RunScheduled, w.Start)

	if prev, err := s.runs.Get(ctx, runID); err == nil && prev.Status == task.StatusSucceeded {
		logger.Info("Run already succeeded, not triggering again.", "run_id", runID)
		return
	}

	rec, err := s.execute(ctx, task.ExecContext{
		RunID:         runID,
		ScheduledTime: w.End,
		LogicalDate:   w.Start,
	})
	if err != nil {
		logger.Error("Scheduled run failed.", "run_id", runID, "failed_tasks", rec.FailedTasks(), "error", err)
		return
	}
	logger.Info("Scheduled run succeeded.", "run_id", runID, "duration", rec.FinishedAt.Sub(rec.StartedAt).String())
}

// RunOnce performs a single manual run for logicalDate and returns its
// history record together with the run error.
func (s *Scheduler) RunOnce(ctx context.Context, logicalDate time.Time) (runstore.Record, error) {
	ld := logicalDate.UTC()
	return s.execute(ctx, task.ExecContext{
		RunID:         task.NewRunID(task.RunManual, ld),
		ScheduledTime: s.now().UTC(),
		LogicalDate:   ld,
	})
}

// execute materializes a run, hands it to the runner and records it.
func (s *Scheduler) execute(ctx context.Context, ec task.ExecContext) (runstore.Record, error) {
	ec.DAGID = s.graph.ID()
	ctx, logger := ctxlog.With(ctx, "run_id", ec.RunID, "logical_date", ec.LogicalDate.Format(time.DateOnly))

	run := s.graph.Materialize(ec)
	states := inmemorystore.New()
	startedAt := s.now().UTC()

	saveCtx := context.WithoutCancel(ctx)
	running, err := runstore.NewRecord(ctx, run, states, startedAt, startedAt, nil)
	if err == nil {
		running.Status = task.StatusRunning
		err = s.runs.Save(saveCtx, running)
	}
	if err != nil {
		logger.Warn("Could not record run start.", "error", err)
	}

	logger.Info("Run started.")
	runErr := s.runner.Execute(ctx, run, states)

	rec, err := runstore.NewRecord(saveCtx, run, states, startedAt, s.now().UTC(), runErr)
	if err != nil {
		return rec, errors.Join(runErr, err)
	}
	if err := s.runs.Save(saveCtx, rec); err != nil {
		logger.Error("Could not record run.", "error", err)
		return rec, errors.Join(runErr, err)
	}
	return rec, runErr
}
