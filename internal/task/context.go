package task

import (
	"fmt"
	"time"
)

// ExecContext is the narrow, explicit context handed to every action. It is
// passed by value and never shared mutably between tasks.
type ExecContext struct {
	DAGID string
	RunID string
	// ScheduledTime is when the run was triggered (the end of its interval
	// for scheduled runs).
	ScheduledTime time.Time
	// LogicalDate is the start of the data interval the run covers.
	LogicalDate time.Time
}

// RunType distinguishes scheduler-created runs from operator-triggered ones.
type RunType string

const (
	RunScheduled RunType = "scheduled"
	RunManual    RunType = "manual"
)

// NewRunID formats a run identifier such as
// "scheduled__2024-12-28T00:00:00Z".
func NewRunID(kind RunType, logicalDate time.Time) string {
	return fmt.Sprintf("%s__%s", kind, logicalDate.UTC().Format(time.RFC3339))
}
