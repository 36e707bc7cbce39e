package config

import "time"

// Action names accepted in a task definition.
const (
	ActionFetch = "fetch"
	ActionSQL   = "sql"
)

// Workflow is the unified, format-agnostic representation of a workflow
// definition: its identity, trigger, shared task defaults and tasks.
type Workflow struct {
	ID          string
	Description string
	Owner       string
	Schedule    Schedule
	Defaults    Defaults
	Tasks       []*Task
}

// Schedule describes when runs are triggered.
type Schedule struct {
	Every     time.Duration
	StartDate time.Time
	Catchup   bool
}

// Defaults are applied to every task unless the task overrides them.
type Defaults struct {
	Retries        int
	RetryDelay     time.Duration
	EmailOnFailure bool
	EmailOnRetry   bool
	DependsOnPast  bool
}

// Task is the format-agnostic representation of a `task` block.
type Task struct {
	Name      string
	Action    string
	SQL       string
	DependsOn []string

	// Per-task overrides; nil means "use the workflow default".
	Retries    *int
	RetryDelay *time.Duration
}

// TaskByName returns the named task, or nil.
func (w *Workflow) TaskByName(name string) *Task {
	for _, t := range w.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}
