package dag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vk/newsdag/internal/task"
)

// Graph is the static structure of a workflow: its tasks and the
// "must complete before" edges between them. The edge set is kept acyclic at
// all times; an edge that would close a cycle is rejected before the graph is
// touched.
type Graph struct {
	mutex sync.RWMutex
	id    string
	nodes map[string]*vertex
	// order preserves definition order for stable iteration.
	order []string
}

type vertex struct {
	task       *task.Task
	deps       map[string]*vertex
	dependents map[string]*vertex
}

// New creates and returns an initialized, empty Graph identified by id.
func New(id string) *Graph {
	return &Graph{
		id:    id,
		nodes: make(map[string]*vertex),
	}
}

// ID returns the workflow identifier.
func (g *Graph) ID() string {
	return g.id
}

// Define registers a task. The name must be unique within the graph.
func (g *Graph) Define(name string, action task.Action, policy task.Policy) (*task.Task, error) {
	t, err := task.New(name, action, policy)
	if err != nil {
		return nil, err
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[t.Name()]; ok {
		return nil, &DuplicateTaskError{Name: t.Name()}
	}
	g.nodes[t.Name()] = &vertex{
		task:       t,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
	g.order = append(g.order, t.Name())
	return t, nil
}

// AddDependency records that downstream must not start until upstream has
// succeeded. Adding an existing edge is a no-op.
func (g *Graph) AddDependency(upstream, downstream string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	up, ok := g.nodes[upstream]
	if !ok {
		return fmt.Errorf("%w: upstream '%s'", ErrUnknownTask, upstream)
	}
	down, ok := g.nodes[downstream]
	if !ok {
		return fmt.Errorf("%w: downstream '%s'", ErrUnknownTask, downstream)
	}
	if _, exists := up.dependents[downstream]; exists {
		return nil
	}

	// The new edge closes a cycle iff upstream is already reachable from
	// downstream.
	if path := g.pathLocked(down, upstream); path != nil {
		return &CycleError{
			Upstream:   upstream,
			Downstream: downstream,
			Path:       append(path, downstream),
		}
	}

	down.deps[upstream] = up
	up.dependents[downstream] = down
	return nil
}

// pathLocked returns the names along a dependents-path from 'from' to the task
// named target, or nil when target is unreachable. Callers hold the mutex.
func (g *Graph) pathLocked(from *vertex, target string) []string {
	visited := make(map[string]bool)

	var visit func(v *vertex) []string
	visit = func(v *vertex) []string {
		if v.task.Name() == target {
			return []string{target}
		}
		if visited[v.task.Name()] {
			return nil
		}
		visited[v.task.Name()] = true

		for _, name := range sortedKeys(v.dependents) {
			if rest := visit(v.dependents[name]); rest != nil {
				return append([]string{v.task.Name()}, rest...)
			}
		}
		return nil
	}
	return visit(from)
}

// Task returns the named task.
func (g *Graph) Task(name string) (*task.Task, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return v.task, true
}

// Tasks returns every task in definition order.
func (g *Graph) Tasks() []*task.Task {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	tasks := make([]*task.Task, 0, len(g.order))
	for _, name := range g.order {
		tasks = append(tasks, g.nodes[name].task)
	}
	return tasks
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Upstream returns the sorted names of the direct dependencies of a task.
func (g *Graph) Upstream(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTask, name)
	}
	return sortedKeys(v.deps), nil
}

// Downstream returns the sorted names of the tasks that directly depend on a task.
func (g *Graph) Downstream(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTask, name)
	}
	return sortedKeys(v.dependents), nil
}

// Edges returns every edge as an [upstream, downstream] pair, sorted.
func (g *Graph) Edges() [][2]string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var edges [][2]string
	for _, name := range g.order {
		for _, down := range sortedKeys(g.nodes[name].dependents) {
			edges = append(edges, [2]string{name, down})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// TopologicalOrder returns task names such that every task appears after all
// of its dependencies. Ties are broken alphabetically so the order is stable.
func (g *Graph) TopologicalOrder() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	var ready []string
	for name, v := range g.nodes {
		indegree[name] = len(v.deps)
		if len(v.deps) == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var unlocked []string
		for down := range g.nodes[name].dependents {
			indegree[down]--
			if indegree[down] == 0 {
				unlocked = append(unlocked, down)
			}
		}
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}
	return order
}

func sortedKeys(m map[string]*vertex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
