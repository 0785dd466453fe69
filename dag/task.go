package dag

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/etlflow/resilience"
)

// RunFunc is the unit of work of a task. in holds the output of every
// declared dependency, keyed by task ID.
type RunFunc func(ctx context.Context, in Inputs) (any, error)

// Task is a named unit of work with dependencies and a retry policy.
type Task struct {
	// ID uniquely identifies the task within a graph.
	ID string
	// Run performs the work.
	Run RunFunc
	// DependsOn lists the IDs of tasks that must succeed first.
	DependsOn []string
	// Retry bounds how often Run is attempted. A zero policy means one attempt.
	Retry resilience.Policy
	// Timeout bounds a single attempt. Zero means no bound.
	Timeout time.Duration
}

func (t *Task) clone() *Task {
	c := *t
	c.DependsOn = slices.Clone(t.DependsOn)
	return &c
}

// Inputs holds the outputs of a task's dependencies.
type Inputs map[string]any

// Get returns the output of dependency id.
func (in Inputs) Get(id string) (any, bool) {
	v, ok := in[id]
	return v, ok
}

// Input returns the output of dependency id as a T.
// Returns an error if id is not a dependency or its output has another type.
func Input[T any](in Inputs, id string) (T, error) {
	var zero T
	raw, ok := in[id]
	if !ok {
		return zero, fmt.Errorf("dag: no output from dependency %q", id)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("dag: output of %q: expected %T, got %T", id, zero, raw)
	}
	return val, nil
}
