package models

import (
	"os"
	"strings"
	"time"
)

// TriggerKind identifies what started an execution.
type TriggerKind string

const (
	TriggerKindManual   TriggerKind = "manual"
	TriggerKindAPI      TriggerKind = "api"
	TriggerKindSchedule TriggerKind = "schedule"
	TriggerKindWebhook  TriggerKind = "webhook"
)

// BlockState tracks the outcome of one block inside an execution. Every block
// gets a not-executed state at run initialization and is mutated exactly once
// to its terminal value.
type BlockState struct {
	Executed    bool           `json:"executed"`
	Success     bool           `json:"success"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

// BlockLog is one entry of the ordered execution history. Exactly one entry is
// appended per block invocation, regardless of outcome.
type BlockLog struct {
	BlockID    string    `json:"block_id"`
	BlockType  string    `json:"block_type"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	ErrorType  string    `json:"error_type,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// ExecutionContext is the mutable per-run state container. It is exclusively
// owned by one execution: created at run start, serialized or discarded at run
// end. It is never shared across processes; cross-process visibility goes
// through the ExecutionState document instead.
type ExecutionContext struct {
	ExecutionID string      `json:"execution_id"`
	WorkflowID  string      `json:"workflow_id"`
	UserID      string      `json:"user_id,omitempty"`
	Trigger     TriggerKind `json:"trigger"`

	BlockStates map[string]*BlockState `json:"block_states"`
	Logs        []BlockLog             `json:"logs"`

	// Variables is the workflow variable namespace. Loop iterations and
	// parallel branches overlay values here and must restore them afterwards.
	Variables   map[string]any    `json:"variables"`
	Environment map[string]string `json:"environment,omitempty"`

	LoopIterations  map[string]int `json:"loop_iterations,omitempty"`
	ParallelTracker map[string]int `json:"parallel_tracker,omitempty"`

	// Decisions records routing choices (condition block id -> chosen handle)
	// for debugging the taken path.
	Decisions map[string]string `json:"decisions,omitempty"`

	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	TokensUsed int64 `json:"tokens_used"`
	CostCents  int64 `json:"cost_cents"`
}

// NewExecutionContext creates a run context with a not-executed BlockState for
// every block of the workflow.
func NewExecutionContext(executionID string, workflow *Workflow, userID string, trigger TriggerKind) *ExecutionContext {
	states := make(map[string]*BlockState, len(workflow.Blocks))
	for _, block := range workflow.Blocks {
		states[block.ID] = &BlockState{}
	}

	variables := make(map[string]any, len(workflow.Variables))
	for k, v := range workflow.Variables {
		variables[k] = v
	}

	// The run keeps its own snapshot of the process environment, so every
	// block of one execution resolves the same values.
	environment := make(map[string]string)

	for _, entry := range os.Environ() {
		if i := strings.IndexByte(entry, '='); i > 0 {
			environment[entry[:i]] = entry[i+1:]
		}
	}

	return &ExecutionContext{
		ExecutionID:     executionID,
		WorkflowID:      workflow.ID,
		UserID:          userID,
		Trigger:         trigger,
		BlockStates:     states,
		Logs:            make([]BlockLog, 0),
		Variables:       variables,
		Environment:     environment,
		LoopIterations:  make(map[string]int),
		ParallelTracker: make(map[string]int),
		Decisions:       make(map[string]string),
		Status:          ExecutionStatusRunning,
		StartedAt:       time.Now().UTC(),
	}
}

// SnapshotVariables returns a shallow copy of the variable namespace, used by
// loop and parallel executors to restore scope after each iteration or branch.
func (ec *ExecutionContext) SnapshotVariables() map[string]any {
	snapshot := make(map[string]any, len(ec.Variables))
	for k, v := range ec.Variables {
		snapshot[k] = v
	}

	return snapshot
}

// RestoreVariables replaces the variable namespace with a previously taken
// snapshot.
func (ec *ExecutionContext) RestoreVariables(snapshot map[string]any) {
	ec.Variables = make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		ec.Variables[k] = v
	}
}

// RecordBlockResult writes the terminal state for a block and appends its log
// entry. A block state never regresses: a second write for the same block is
// ignored.
func (ec *ExecutionContext) RecordBlockResult(block *Block, result *BlockResult) {
	state, ok := ec.BlockStates[block.ID]
	if !ok {
		state = &BlockState{}
		ec.BlockStates[block.ID] = state
	}

	if !state.Executed {
		state.Executed = true
		state.Success = result.Success
		state.Outputs = result.Outputs
		state.Error = result.Error
		state.StartedAt = &result.StartedAt
		completed := result.StartedAt.Add(result.Duration)
		state.CompletedAt = &completed
		state.DurationMs = result.Duration.Milliseconds()
	}

	ec.Logs = append(ec.Logs, BlockLog{
		BlockID:    block.ID,
		BlockType:  block.Type,
		Success:    result.Success,
		Error:      result.Error,
		ErrorType:  result.ErrorType,
		StartedAt:  result.StartedAt,
		DurationMs: result.Duration.Milliseconds(),
	})
}

// BlockResult is the uniform per-block contract returned by the error handler
// wrapper: no raw error ever crosses into the scheduler loop.
type BlockResult struct {
	Success   bool           `json:"success"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorType string         `json:"error_type,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
}
