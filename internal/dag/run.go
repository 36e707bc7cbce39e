package dag

import (
	"github.com/vk/newsdag/internal/node"
	"github.com/vk/newsdag/internal/task"
)

// Run is one materialization of the graph for a scheduled time. The task
// definitions are shared with the graph; everything mutable lives on the
// run's own nodes.
type Run struct {
	ExecContext task.ExecContext

	nodes map[string]*node.Node
	order []string
}

// Materialize instantiates a Run for ec with every task pending and its
// unmet-dependency counter primed.
func (g *Graph) Materialize(ec task.ExecContext) *Run {
	order := g.TopologicalOrder()

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if ec.DAGID == "" {
		ec.DAGID = g.id
	}
	r := &Run{
		ExecContext: ec,
		nodes:       make(map[string]*node.Node, len(g.nodes)),
		order:       order,
	}
	for name, v := range g.nodes {
		r.nodes[name] = node.New(v.task)
	}
	for name, v := range g.nodes {
		n := r.nodes[name]
		for _, dep := range sortedKeys(v.deps) {
			n.Deps = append(n.Deps, r.nodes[dep])
		}
		for _, down := range sortedKeys(v.dependents) {
			n.Dependents = append(n.Dependents, r.nodes[down])
		}
		n.SetDepCount(int32(len(v.deps)))
	}
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.ExecContext.RunID
}

// Nodes returns every node in topological order.
func (r *Run) Nodes() []*node.Node {
	nodes := make([]*node.Node, 0, len(r.order))
	for _, name := range r.order {
		nodes = append(nodes, r.nodes[name])
	}
	return nodes
}

// Node returns the node for a task name.
func (r *Run) Node(name string) (*node.Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

// Roots returns the nodes with no dependencies, in topological order.
func (r *Run) Roots() []*node.Node {
	var roots []*node.Node
	for _, n := range r.Nodes() {
		if len(n.Deps) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Status summarizes the run. A run is pending until a task starts, running
// until every task is terminal, and then succeeded only if every task
// succeeded.
func (r *Run) Status() task.Status {
	started, allTerminal, allSucceeded := false, true, true
	for _, n := range r.nodes {
		s := n.Status()
		if s != task.StatusPending {
			started = true
		}
		if !s.Terminal() {
			allTerminal = false
		}
		if s != task.StatusSucceeded {
			allSucceeded = false
		}
	}
	switch {
	case allTerminal && allSucceeded:
		return task.StatusSucceeded
	case allTerminal:
		return task.StatusFailed
	case started:
		return task.StatusRunning
	default:
		return task.StatusPending
	}
}

// Statuses returns a snapshot of every task's status keyed by name.
func (r *Run) Statuses() map[string]task.Status {
	out := make(map[string]task.Status, len(r.nodes))
	for name, n := range r.nodes {
		out[name] = n.Status()
	}
	return out
}
