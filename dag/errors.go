package dag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kbukum/etlflow/errors"
)

// CycleError reports a dependency cycle. Path lists task IDs where each
// depends on the one before it; the first and last entries are equal.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dag: dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// Code returns the error code.
func (e *CycleError) Code() apperrors.ErrorCode { return apperrors.ErrCodeCycleDetected }

// UnknownDependencyError reports a dependency on a task that is not in the graph.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("dag: task %q depends on unknown task %q", e.Task, e.Dependency)
}

// Code returns the error code.
func (e *UnknownDependencyError) Code() apperrors.ErrorCode {
	return apperrors.ErrCodeUnknownDependency
}

// DuplicateTaskError reports two tasks with the same ID.
type DuplicateTaskError struct {
	ID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("dag: duplicate task %q", e.ID)
}

// Code returns the error code.
func (e *DuplicateTaskError) Code() apperrors.ErrorCode { return apperrors.ErrCodeDuplicateTask }

// TaskExecutionError is recorded for a task whose attempts all failed.
type TaskExecutionError struct {
	Task     string
	Attempts int
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("dag: task %q failed after %d attempt(s): %v", e.Task, e.Attempts, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// Code returns the error code.
func (e *TaskExecutionError) Code() apperrors.ErrorCode { return apperrors.ErrCodeTaskExecution }

// TimeoutError reports an attempt that exceeded the task's timeout.
// Abandoned is set when the attempt did not return within the grace period
// after its deadline; such a task is not retried.
type TimeoutError struct {
	Task      string
	Attempt   int
	Timeout   time.Duration
	Abandoned bool
}

func (e *TimeoutError) Error() string {
	if e.Abandoned {
		return fmt.Sprintf("dag: task %q attempt %d timed out after %s and was abandoned", e.Task, e.Attempt, e.Timeout)
	}
	return fmt.Sprintf("dag: task %q attempt %d timed out after %s", e.Task, e.Attempt, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Code returns the error code.
func (e *TimeoutError) Code() apperrors.ErrorCode { return apperrors.ErrCodeTimeout }

// TransitionError reports an illegal task state change.
type TransitionError struct {
	Task string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("dag: illegal transition for %q: %s -> %s", e.Task, e.From, e.To)
}

// Code returns the error code.
func (e *TransitionError) Code() apperrors.ErrorCode { return apperrors.ErrCodeInvalidTransition }

// ErrorCode returns the code of the outermost coded error in err's chain.
// TaskExecutionError defers to the error it wraps when that one is coded.
func ErrorCode(err error) apperrors.ErrorCode {
	if err == nil {
		return ""
	}
	var te *TaskExecutionError
	if errors.As(err, &te) {
		if code := ErrorCode(te.Err); code != apperrors.ErrCodeInternal {
			return code
		}
		return te.Code()
	}
	var coded interface{ Code() apperrors.ErrorCode }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.ErrCodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrCodeTimeout
	}
	return apperrors.ErrCodeInternal
}
