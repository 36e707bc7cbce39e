// Package runstore keeps the history of workflow runs: which run happened
// for which logical date, how it ended and which task failed.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vk/newsdag/internal/dag"
	"github.com/vk/newsdag/internal/nodestore"
	"github.com/vk/newsdag/internal/task"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store persists run records.
type Store interface {
	// Save inserts or replaces the record with the same RunID.
	Save(ctx context.Context, rec Record) error
	// Get returns the record for runID, or ErrNotFound.
	Get(ctx context.Context, runID string) (Record, error)
	// List returns up to limit records, newest logical date first. A limit
	// below 1 returns every record.
	List(ctx context.Context, limit int) ([]Record, error)
}

// Record is the archived outcome of one run.
type Record struct {
	RunID         string       `json:"run_id"`
	DAGID         string       `json:"dag_id"`
	LogicalDate   time.Time    `json:"logical_date"`
	ScheduledTime time.Time    `json:"scheduled_time"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Status        task.Status  `json:"status"`
	Error         string       `json:"error,omitempty"`
	Tasks         []TaskRecord `json:"tasks"`
}

// TaskRecord is the archived outcome of one task within a run.
type TaskRecord struct {
	Name       string      `json:"name"`
	Status     task.Status `json:"status"`
	Attempts   int         `json:"attempts"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	// Result is the action's output as JSON, set for succeeded tasks.
	Result json.RawMessage `json:"result,omitempty"`
}

// FailedTasks returns the names of tasks that failed, excluding skips.
func (r Record) FailedTasks() []string {
	var out []string
	for _, t := range r.Tasks {
		if t.Status == task.StatusFailed {
			out = append(out, t.Name)
		}
	}
	return out
}

// NewRecord assembles a record from a finished run and its task states.
func NewRecord(ctx context.Context, run *dag.Run, states nodestore.Store, startedAt, finishedAt time.Time, runErr error) (Record, error) {
	rec := Record{
		RunID:         run.ID(),
		DAGID:         run.ExecContext.DAGID,
		LogicalDate:   run.ExecContext.LogicalDate.UTC(),
		ScheduledTime: run.ExecContext.ScheduledTime.UTC(),
		StartedAt:     startedAt.UTC(),
		FinishedAt:    finishedAt.UTC(),
		Status:        run.Status(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	for _, n := range run.Nodes() {
		status, err := states.GetStatus(ctx, n.Name())
		if err != nil {
			return Record{}, err
		}
		attempts, err := states.GetAttempts(ctx, n.Name())
		if err != nil {
			return Record{}, err
		}
		taskErr, err := states.GetError(ctx, n.Name())
		if err != nil {
			return Record{}, err
		}
		result, err := states.GetResult(ctx, n.Name())
		if err != nil {
			return Record{}, err
		}
		tr := TaskRecord{
			Name:       n.Name(),
			Status:     status,
			Attempts:   attempts,
			StartedAt:  timePtr(n.StartedAt),
			FinishedAt: timePtr(n.FinishedAt),
		}
		if taskErr != nil {
			tr.Error = taskErr.Error()
		}
		if result != nil {
			raw, err := json.Marshal(result)
			if err != nil {
				return Record{}, fmt.Errorf("encode result of %s: %w", n.Name(), err)
			}
			tr.Result = raw
		}
		rec.Tasks = append(rec.Tasks, tr)
	}
	return rec, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
