package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Task is a single, immutable unit of work in the workflow graph. It is
// created at definition time and never mutated afterwards; per-run state
// lives in the node store, not here.
type Task struct {
	name   string
	action Action
	policy Policy
}

// New validates and constructs a Task.
func New(name string, action Action, policy Policy) (*Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("task name is required")
	}
	if action == nil {
		return nil, fmt.Errorf("task '%s': action is required", name)
	}
	if stmt, ok := action.(ExecuteStatement); ok && strings.TrimSpace(stmt.SQL) == "" {
		return nil, fmt.Errorf("task '%s': statement action requires non-empty SQL", name)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("task '%s': %w", name, err)
	}
	return &Task{name: name, action: action, policy: policy}, nil
}

// Name returns the unique task name.
func (t *Task) Name() string { return t.name }

// Action returns the task's action variant.
func (t *Task) Action() Action { return t.action }

// Policy returns a copy of the task's execution policy.
func (t *Task) Policy() Policy { return t.policy }

// String implements fmt.Stringer.
func (t *Task) String() string {
	return fmt.Sprintf("%s(%s)", t.name, t.action.Kind())
}

// Policy controls how a task is retried and alerted on. The alerting flags
// are carried for completeness; no alert channel exists.
type Policy struct {
	Retries        int
	RetryDelay     time.Duration
	EmailOnFailure bool
	EmailOnRetry   bool
	DependsOnPast  bool
}

// DefaultPolicy returns the workflow-wide defaults: no retries, a five minute
// delay should retries be enabled, and no alerting.
func DefaultPolicy() Policy {
	return Policy{
		Retries:    0,
		RetryDelay: 5 * time.Minute,
	}
}

// Validate reports whether the policy is usable.
func (p Policy) Validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", p.Retries)
	}
	if p.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative, got %s", p.RetryDelay)
	}
	return nil
}

// MaxAttempts is the total number of times a task may be executed in one run.
func (p Policy) MaxAttempts() int {
	return p.Retries + 1
}
