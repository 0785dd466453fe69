package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Graph construction errors (fatal, raised before any execution)
const (
	// ErrCodeCycleDetected indicates the task dependencies contain a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
	// ErrCodeUnknownDependency indicates a task depends on an identifier that is not in the graph.
	ErrCodeUnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"
	// ErrCodeDuplicateTask indicates two tasks share an identifier.
	ErrCodeDuplicateTask ErrorCode = "DUPLICATE_TASK"
)

// Execution errors
const (
	// ErrCodeTaskExecution indicates a run function failed after exhausting its attempts.
	ErrCodeTaskExecution ErrorCode = "TASK_EXECUTION_FAILED"
	// ErrCodeTimeout indicates an attempt exceeded its maximum duration.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCancelled indicates the run was cancelled externally.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Collaborator errors (retryable)
const (
	// ErrCodeCollaboratorUnavailable indicates object storage or the warehouse
	// rejected the request or could not be reached.
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"
	// ErrCodeJobFailed indicates a warehouse load job ran and reported an error.
	ErrCodeJobFailed ErrorCode = "JOB_FAILED"
)

// Input and state errors
const (
	// ErrCodeInvalidInput indicates a configuration or input value is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidTransition indicates an illegal task state transition.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:                 true,
	ErrCodeCollaboratorUnavailable: true,
	ErrCodeJobFailed:               true,
	ErrCodeTaskExecution:           false,
	ErrCodeInternal:                false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
