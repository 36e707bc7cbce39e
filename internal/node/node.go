// Package node holds the per-run, mutable counterpart of a task: its
// position in the run's graph, its unmet-dependency counter and its
// execution state.
package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/newsdag/internal/task"
)

// Node is a single vertex in a materialized run.
type Node struct {
	// Task is the immutable definition this node executes.
	Task *task.Task
	// Deps are the upstream nodes that must succeed first.
	Deps []*Node
	// Dependents are the downstream nodes waiting on this one.
	Dependents []*Node

	// Result is the action's output on success. Written by the worker that
	// executes the node; safe to read once the run has finished.
	Result any
	// Error is the failure, or the skip reason for skipped nodes.
	Error error
	// Attempts counts executions, including retries.
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time

	// depCount is an atomic counter for unmet dependencies.
	depCount atomic.Int32
	status   atomic.Value // task.Status
	// finishOnce guarantees a node reaches a terminal state exactly once.
	finishOnce sync.Once
}

// New creates a pending node for t.
func New(t *task.Task) *Node {
	n := &Node{Task: t}
	n.status.Store(task.StatusPending)
	return n
}

// Name returns the underlying task name.
func (n *Node) Name() string {
	return n.Task.Name()
}

// SetDepCount initialises the unmet-dependency counter.
func (n *Node) SetDepCount(count int32) {
	n.depCount.Store(count)
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// Status atomically retrieves the node's execution status.
func (n *Node) Status() task.Status {
	return n.status.Load().(task.Status)
}

// Start marks the node as running.
func (n *Node) Start(at time.Time) {
	n.StartedAt = at
	n.status.Store(task.StatusRunning)
}

// Succeed records a successful result. It returns false if the node had
// already reached a terminal state.
func (n *Node) Succeed(result any, at time.Time) bool {
	return n.finish(task.StatusSucceeded, result, nil, at)
}

// Fail records a failure. It returns false if the node had already reached a
// terminal state.
func (n *Node) Fail(err error, at time.Time) bool {
	return n.finish(task.StatusFailed, nil, err, at)
}

// Skip marks a node that will never run and decrements wg. It is safe to call
// more than once; only the first call has any effect, which is reported by
// the return value.
func (n *Node) Skip(err error, wg *sync.WaitGroup) bool {
	skipped := n.finish(task.StatusSkipped, nil, err, time.Time{})
	if skipped {
		wg.Done()
	}
	return skipped
}

func (n *Node) finish(s task.Status, result any, err error, at time.Time) bool {
	var first bool
	n.finishOnce.Do(func() {
		n.Result = result
		n.Error = err
		n.FinishedAt = at
		n.status.Store(s)
		first = true
	})
	return first
}
