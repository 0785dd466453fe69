package dag

// State is the lifecycle state of a task within a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// States lists every task state in lifecycle order.
var States = []State{StatePending, StateRunning, StateSucceeded, StateFailed, StateSkipped}

// IsTerminal reports whether no further transition can leave s.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from one state to another.
// running -> running records a retry.
func CanTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateSkipped
	case StateRunning:
		return to == StateRunning || to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}

// Status is the overall outcome of a run.
type Status string

const (
	// StatusRunning means at least one task has not reached a terminal state.
	StatusRunning Status = "running"
	// StatusSucceeded means every task succeeded.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means at least one task failed.
	StatusFailed Status = "failed"
	// StatusPartial means no task failed but at least one was skipped.
	StatusPartial Status = "partial"
)
