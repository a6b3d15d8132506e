package engine

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage a cycle error came from, so a failed
// cycle is attributable in logs and metrics instead of a catch-all.
type Stage string

const (
	StageRead      Stage = "read"
	StageReconcile Stage = "reconcile"
	StageAssign    Stage = "assign"
	StageConfirm   Stage = "confirm"
	StageClassify  Stage = "classify"
	StageWrite     Stage = "write"
)

// StageError wraps an error with the pipeline stage it occurred in.
// All stage errors degrade to "log and skip to next cycle"; the stage
// exists for attribution, not for divergent handling.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ErrorStage extracts the stage from a cycle error, or "unknown".
func ErrorStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "unknown"
}
