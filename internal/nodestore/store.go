// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of tasks while a run is in flight.
//
// # Why Node Store Exists
//
// The task graph is immutable once built. Everything that changes during a
// run (status, result, error, attempt count) is written here instead, so the
// executor's frequent writes never contend with readers of the graph, and
// the run history can be assembled from one place once the run ends.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per run (ephemeral, not persistent across runs)
//  2. **Mutated** by the executor as tasks move through their states
//  3. **Read** when the run is recorded in run history, and by the health
//     server while the run is still in flight
//  4. **Discarded** when the run has been recorded
//
// # State Transitions
//
// Tasks follow this lifecycle:
//
//	Pending → Running → Succeeded (with result) OR Failed (with error)
//	Pending → Skipped (upstream failed)
package nodestore

import (
	"context"

	"github.com/vk/newsdag/internal/task"
)

// Store manages the mutable execution state of the tasks of one run, keyed
// by task name.
//
// Implementations MUST be safe for concurrent use: workers executing the two
// summary tasks write to it at the same time.
type Store interface {
	// SetStatus records a task's status transition.
	SetStatus(ctx context.Context, name string, status task.Status) error

	// GetStatus returns a task's status, or StatusPending if none was set.
	GetStatus(ctx context.Context, name string) (task.Status, error)

	// SetResult records the result of a successful action.
	SetResult(ctx context.Context, name string, result any) error

	// GetResult returns the recorded result, or nil.
	GetResult(ctx context.Context, name string) (any, error)

	// SetError records why a task failed or was skipped.
	SetError(ctx context.Context, name string, taskErr error) error

	// GetError returns the recorded error, or nil.
	GetError(ctx context.Context, name string) (error, error)

	// IncAttempts increments and returns the attempt counter of a task.
	IncAttempts(ctx context.Context, name string) (int, error)

	// GetAttempts returns how many times a task has been attempted.
	GetAttempts(ctx context.Context, name string) (int, error)
}
