package engine

import (
	"errors"
	"fmt"
)

// ErrCancelled is the terminal reason for a run stopped by cancellation
// (spec §7 kind 6). It is not treated as a failure.
var ErrCancelled = errors.New("engine: run cancelled")

// DecisionError wraps a per-person failure in the decision stage (spec §7
// kind 3). The offending person is treated as staying for the step; the
// run continues.
type DecisionError struct {
	Cause error
}

func (e *DecisionError) Error() string { return fmt.Sprintf("engine: decision error: %v", e.Cause) }
func (e *DecisionError) Unwrap() error { return e.Cause }

// ExecutionError reports an inconsistency applying a migration flow (spec
// §7 kind 4), e.g. removing a person not found in the expected origin.
// The flow is skipped and its counters are not incremented.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("engine: execution error: %v", e.Cause) }
func (e *ExecutionError) Unwrap() error { return e.Cause }

// StageFailedError wraps an uncaught, non-cancellation error raised by a
// stage (spec §7 kind 7). The run terminates with reason StageFailed.
type StageFailedError struct {
	Stage string
	Cause error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("engine: stage %q failed: %v", e.Stage, e.Cause)
}
func (e *StageFailedError) Unwrap() error { return e.Cause }
