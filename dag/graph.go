package dag

import (
	"slices"

	apperrors "github.com/kbukum/etlflow/errors"
)

// DefaultGraphName names graphs built without an explicit name.
const DefaultGraphName = "dag"

// Graph is an immutable, validated set of tasks in topological order.
type Graph struct {
	name       string
	tasks      map[string]*Task
	order      []string
	levels     [][]string
	upstream   map[string][]string
	downstream map[string][]string
}

// Build validates tasks and returns their dependency graph.
func Build(tasks ...*Task) (*Graph, error) {
	return BuildNamed(DefaultGraphName, tasks...)
}

// BuildNamed is Build with a graph name, reported in run records.
//
// It fails with *UnknownDependencyError when a dependency is not among tasks,
// *DuplicateTaskError on repeated IDs and *CycleError when the dependencies
// form a cycle. Tasks are copied; later changes to them do not affect the graph.
func BuildNamed(name string, tasks ...*Task) (*Graph, error) {
	if name == "" {
		name = DefaultGraphName
	}
	g := &Graph{
		name:       name,
		tasks:      make(map[string]*Task, len(tasks)),
		upstream:   make(map[string][]string, len(tasks)),
		downstream: make(map[string][]string, len(tasks)),
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			return nil, apperrors.InvalidInput("task", "must not be nil")
		}
		if t.ID == "" {
			return nil, apperrors.InvalidInput("task.id", "must not be empty")
		}
		if t.Run == nil {
			return nil, apperrors.InvalidInput("task."+t.ID+".run", "must not be nil")
		}
		if _, dup := g.tasks[t.ID]; dup {
			return nil, &DuplicateTaskError{ID: t.ID}
		}
		g.tasks[t.ID] = t.clone()
		ids = append(ids, t.ID)
	}

	for _, id := range ids {
		t := g.tasks[id]
		deps := make([]string, 0, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, &UnknownDependencyError{Task: id, Dependency: dep}
			}
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		slices.Sort(deps)
		g.upstream[id] = deps
		for _, dep := range deps {
			g.downstream[dep] = append(g.downstream[dep], id)
		}
	}
	for id := range g.downstream {
		slices.Sort(g.downstream[id])
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	g.levels = g.buildLevels()
	return g, nil
}

// sort runs Kahn's algorithm. Among ready tasks the smallest ID goes first.
func (g *Graph) sort() ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	var ready []string
	for id := range g.tasks {
		inDegree[id] = len(g.upstream[id])
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(g.tasks))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, next := range g.downstream[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				i, _ := slices.BinarySearch(ready, next)
				ready = slices.Insert(ready, i, next)
			}
		}
	}

	if len(order) != len(g.tasks) {
		return nil, &CycleError{Path: g.findCycle(inDegree)}
	}
	return order, nil
}

// findCycle walks dependencies among the tasks Kahn's pass could not order.
// Each of them has a dependency in the same set, so the walk must revisit a task.
func (g *Graph) findCycle(inDegree map[string]int) []string {
	var remaining []string
	for id, deg := range inDegree {
		if deg > 0 {
			remaining = append(remaining, id)
		}
	}
	slices.Sort(remaining)

	var walk []string
	seen := make(map[string]int)
	cur := remaining[0]
	for {
		if i, ok := seen[cur]; ok {
			cycle := append(slices.Clone(walk[i:]), cur)
			slices.Reverse(cycle)
			return cycle
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)

		for _, dep := range g.upstream[cur] {
			if inDegree[dep] > 0 {
				cur = dep
				break
			}
		}
	}
}

func (g *Graph) buildLevels() [][]string {
	depth := make(map[string]int, len(g.order))
	var levels [][]string
	for _, id := range g.order {
		d := 0
		for _, dep := range g.upstream[id] {
			d = max(d, depth[dep]+1)
		}
		depth[id] = d
		if d == len(levels) {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	for _, l := range levels {
		slices.Sort(l)
	}
	return levels
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.order) }

// Order returns the task IDs in topological order.
func (g *Graph) Order() []string { return slices.Clone(g.order) }

// Levels groups task IDs by dependency depth. Tasks in a level depend only on
// tasks in earlier levels.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, l := range g.levels {
		out[i] = slices.Clone(l)
	}
	return out
}

// Task returns a copy of the task with the given ID.
func (g *Graph) Task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// Upstream returns the sorted IDs task id depends on.
func (g *Graph) Upstream(id string) []string { return slices.Clone(g.upstream[id]) }

// Downstream returns the sorted IDs of tasks that depend on id.
func (g *Graph) Downstream(id string) []string { return slices.Clone(g.downstream[id]) }
