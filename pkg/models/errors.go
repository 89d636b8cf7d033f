// Package models provides the shared error taxonomy for the execution engine.
package models

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the engine can surface. Callers
// branch on these with errors.Is; the typed wrappers below carry context.
var (
	// ErrValidation indicates bad block input or configuration. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrBlockExecution indicates a runtime block failure. Retried only when
	// classified recoverable.
	ErrBlockExecution = errors.New("block execution error")

	// ErrCyclicDependency indicates the workflow graph contains a cycle.
	// Fatal: zero blocks execute.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrExecutionTimeout indicates a per-block or whole-run budget expired.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrInvalidStateTransition indicates an illegal state change attempt.
	// The stored state is left untouched.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrLockAcquisition indicates lock contention. Busy, retry later; not fatal.
	ErrLockAcquisition = errors.New("lock acquisition failed")
)

// Error type tags used in structured block results and API responses.
const (
	ErrorTypeValidation      = "validation_error"
	ErrorTypeBlockExecution  = "block_execution_error"
	ErrorTypeCyclic          = "cyclic_dependency_error"
	ErrorTypeTimeout         = "execution_timeout_error"
	ErrorTypeStateTransition = "invalid_state_transition_error"
	ErrorTypeLock            = "lock_acquisition_error"
	ErrorTypeInternal        = "internal_error"
)

// BlockError wraps a block-level failure with the offending block's identity.
type BlockError struct {
	BlockID   string
	BlockType string
	Err       error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %s (%s): %v", e.BlockID, e.BlockType, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a never-retried input/config error for a block.
func NewValidationError(blockID, blockType, message string) *BlockError {
	return &BlockError{
		BlockID:   blockID,
		BlockType: blockType,
		Err:       fmt.Errorf("%w: %s", ErrValidation, message),
	}
}

// NewBlockExecutionError builds a runtime block failure.
func NewBlockExecutionError(blockID, blockType string, cause error) *BlockError {
	return &BlockError{
		BlockID:   blockID,
		BlockType: blockType,
		Err:       fmt.Errorf("%w: %v", ErrBlockExecution, cause),
	}
}

// CyclicDependencyError names the workflow whose graph contains a cycle.
type CyclicDependencyError struct {
	WorkflowID string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("workflow %s contains a cyclic dependency", e.WorkflowID)
}

func (e *CyclicDependencyError) Unwrap() error {
	return ErrCyclicDependency
}

// InvalidStateTransitionError reports a transition outside the declared table.
type InvalidStateTransitionError struct {
	ExecutionID string
	From        ExecutionStatus
	To          ExecutionStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("execution %s: transition %s -> %s is not allowed", e.ExecutionID, e.From, e.To)
}

func (e *InvalidStateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// LockAcquisitionError reports that a named lock stayed held past the blocking
// timeout.
type LockAcquisitionError struct {
	Name string
}

func (e *LockAcquisitionError) Error() string {
	return fmt.Sprintf("could not acquire lock %q", e.Name)
}

func (e *LockAcquisitionError) Unwrap() error {
	return ErrLockAcquisition
}

// ClassifyError maps an error to its taxonomy tag for structured responses.
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, ErrCyclicDependency):
		return ErrorTypeCyclic
	case errors.Is(err, ErrExecutionTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrInvalidStateTransition):
		return ErrorTypeStateTransition
	case errors.Is(err, ErrLockAcquisition):
		return ErrorTypeLock
	case errors.Is(err, ErrBlockExecution):
		return ErrorTypeBlockExecution
	default:
		return ErrorTypeInternal
	}
}

// ErrorInfo is the API-safe structured form of any engine error, carrying the
// offending block's identity when known.
type ErrorInfo struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	BlockID   string `json:"block_id,omitempty"`
	BlockType string `json:"block_type,omitempty"`
}

// NewErrorInfo formats any error into its structured API-safe response.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}

	info := &ErrorInfo{
		Type:    ClassifyError(err),
		Message: err.Error(),
	}

	var blockErr *BlockError
	if errors.As(err, &blockErr) {
		info.BlockID = blockErr.BlockID
		info.BlockType = blockErr.BlockType
	}

	return info
}
