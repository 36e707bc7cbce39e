package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTask is returned when an operation names a task that was never defined.
var ErrUnknownTask = errors.New("unknown task")

// DuplicateTaskError is returned when a task name is defined twice.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task '%s' is already defined", e.Name)
}

// CycleError is returned when an edge would close a cycle. Path lists the
// existing route from Downstream back to Upstream followed by Downstream
// again, e.g. [b c a b] for a rejected edge a -> b.
type CycleError struct {
	Upstream   string
	Downstream string
	Path       []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("adding dependency %s -> %s would create a cycle: %s",
		e.Upstream, e.Downstream, strings.Join(e.Path, " -> "))
}
