package dag

import (
	"slices"
	"sync"
	"time"
)

// TaskEntry is the recorded state of one task within a run.
type TaskEntry struct {
	State     State
	Attempts  int
	StartedAt time.Time
	EndedAt   time.Time
	Err       error
	Output    any
}

// Transition is one entry of a run's append-only transition log.
type Transition struct {
	Task    string    `json:"task"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	Attempt int       `json:"attempt,omitempty"`
	At      time.Time `json:"at"`
}

// RunRecord is the state of every task in one execution of a graph.
// It is safe for concurrent readers; only the executor writes to it.
type RunRecord struct {
	// ID identifies the run.
	ID string
	// Graph is the name of the executed graph.
	Graph string
	// StartedAt is when the run began.
	StartedAt time.Time

	mu          sync.RWMutex
	order       []string
	entries     map[string]*TaskEntry
	transitions []Transition
	endedAt     time.Time
	cancelled   bool
}

func newRunRecord(id, graph string, order []string, now time.Time) *RunRecord {
	r := &RunRecord{
		ID:        id,
		Graph:     graph,
		StartedAt: now,
		order:     slices.Clone(order),
		entries:   make(map[string]*TaskEntry, len(order)),
	}
	for _, t := range order {
		r.entries[t] = &TaskEntry{State: StatePending}
	}
	return r
}

// transition moves task to state to. output and err are kept on terminal states.
func (r *RunRecord) transition(task string, to State, attempt int, at time.Time, output any, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[task]
	if !ok {
		return &TransitionError{Task: task, To: to}
	}
	if !CanTransition(e.State, to) {
		return &TransitionError{Task: task, From: e.State, To: to}
	}

	from := e.State
	e.State = to
	switch to {
	case StateRunning:
		if from == StatePending {
			e.StartedAt = at
		}
		e.Attempts = attempt
	case StateSucceeded, StateFailed, StateSkipped:
		e.EndedAt = at
		e.Output = output
		e.Err = err
		if from == StateRunning {
			e.Attempts = attempt
		}
	}

	r.transitions = append(r.transitions, Transition{Task: task, From: from, To: to, Attempt: attempt, At: at})
	return nil
}

func (r *RunRecord) finish(at time.Time, cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endedAt = at
	r.cancelled = cancelled
}

// output returns the output of a succeeded task.
func (r *RunRecord) output(task string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[task]; ok && e.State == StateSucceeded {
		return e.Output
	}
	return nil
}

// Tasks returns the task IDs in execution order.
func (r *RunRecord) Tasks() []string {
	return slices.Clone(r.order)
}

// Status returns the state of task id.
func (r *RunRecord) Status(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return "", false
	}
	return e.State, true
}

// Entry returns a copy of the entry of task id.
func (r *RunRecord) Entry(id string) (TaskEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return TaskEntry{}, false
	}
	return *e, true
}

// Summary counts tasks by state. Every state is present.
func (r *RunRecord) Summary() map[State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[State]int, len(States))
	for _, s := range States {
		out[s] = 0
	}
	for _, e := range r.entries {
		out[e.State]++
	}
	return out
}

// IsTerminal reports whether every task reached a terminal state.
func (r *RunRecord) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if !e.State.IsTerminal() {
			return false
		}
	}
	return true
}

// Overall returns the run outcome: failed if any task failed, partial if
// any was skipped, succeeded otherwise. Running until every task is terminal.
func (r *RunRecord) Overall() Status {
	if !r.IsTerminal() {
		return StatusRunning
	}
	s := r.Summary()
	switch {
	case s[StateFailed] > 0:
		return StatusFailed
	case s[StateSkipped] > 0:
		return StatusPartial
	default:
		return StatusSucceeded
	}
}

// EndedAt returns when the run finished, zero while it runs.
func (r *RunRecord) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

// Cancelled reports whether the run's context was cancelled before it finished.
func (r *RunRecord) Cancelled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancelled
}

// Transitions returns a copy of the transition log.
func (r *RunRecord) Transitions() []Transition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.transitions)
}

// TaskSnapshot is the serialisable form of a TaskEntry.
type TaskSnapshot struct {
	ID        string     `json:"id"`
	State     State      `json:"state"`
	Attempts  int        `json:"attempts"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorCode string     `json:"error_code,omitempty"`
	Output    any        `json:"output,omitempty"`
}

// Snapshot is a serialisable copy of a RunRecord.
type Snapshot struct {
	ID          string         `json:"id"`
	Graph       string         `json:"graph"`
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	EndedAt     *time.Time     `json:"ended_at,omitempty"`
	Cancelled   bool           `json:"cancelled"`
	Summary     map[State]int  `json:"summary"`
	Tasks       []TaskSnapshot `json:"tasks"`
	Transitions []Transition   `json:"transitions"`
}

// Snapshot returns a serialisable copy of the record.
func (r *RunRecord) Snapshot() Snapshot {
	status := r.Overall()
	summary := r.Summary()

	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		ID:          r.ID,
		Graph:       r.Graph,
		Status:      status,
		StartedAt:   r.StartedAt,
		EndedAt:     timePtr(r.endedAt),
		Cancelled:   r.cancelled,
		Summary:     summary,
		Tasks:       make([]TaskSnapshot, 0, len(r.order)),
		Transitions: slices.Clone(r.transitions),
	}
	for _, id := range r.order {
		e := r.entries[id]
		ts := TaskSnapshot{
			ID:        id,
			State:     e.State,
			Attempts:  e.Attempts,
			StartedAt: timePtr(e.StartedAt),
			EndedAt:   timePtr(e.EndedAt),
			Output:    e.Output,
		}
		if e.Err != nil {
			ts.Error = e.Err.Error()
			ts.ErrorCode = string(ErrorCode(e.Err))
		}
		s.Tasks = append(s.Tasks, ts)
	}
	return s
}

// Task returns the snapshot of task id.
func (s *Snapshot) Task(id string) (TaskSnapshot, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskSnapshot{}, false
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
