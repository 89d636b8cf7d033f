package models

import "time"

// ExecutionStatus is the coarse-grained state of a workflow execution, shared
// across processes through the execution state document.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "PENDING"
	ExecutionStatusQueued          ExecutionStatus = "QUEUED"
	ExecutionStatusRunning         ExecutionStatus = "RUNNING"
	ExecutionStatusPaused          ExecutionStatus = "PAUSED"
	ExecutionStatusWaitingApproval ExecutionStatus = "WAITING_APPROVAL"
	ExecutionStatusCompleted       ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed          ExecutionStatus = "FAILED"
	ExecutionStatusCancelled       ExecutionStatus = "CANCELLED"
	ExecutionStatusTimeout         ExecutionStatus = "TIMEOUT"
)

// allowedTransitions is the complete transition table. COMPLETED, FAILED,
// CANCELLED and TIMEOUT are terminal and have no outgoing transitions.
var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusPending: {
		ExecutionStatusQueued,
		ExecutionStatusRunning,
		ExecutionStatusCancelled,
	},
	ExecutionStatusQueued: {
		ExecutionStatusRunning,
		ExecutionStatusCancelled,
		ExecutionStatusTimeout,
	},
	ExecutionStatusRunning: {
		ExecutionStatusPaused,
		ExecutionStatusWaitingApproval,
		ExecutionStatusCompleted,
		ExecutionStatusFailed,
		ExecutionStatusCancelled,
		ExecutionStatusTimeout,
	},
	ExecutionStatusPaused: {
		ExecutionStatusRunning,
		ExecutionStatusCancelled,
		ExecutionStatusTimeout,
	},
	ExecutionStatusWaitingApproval: {
		ExecutionStatusRunning,
		ExecutionStatusFailed,
		ExecutionStatusCancelled,
		ExecutionStatusTimeout,
	},
	ExecutionStatusCompleted: {},
	ExecutionStatusFailed:    {},
	ExecutionStatusCancelled: {},
	ExecutionStatusTimeout:   {},
}

// CanTransition reports whether from -> to is declared in the transition table.
func CanTransition(from, to ExecutionStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// IsValid reports whether the status is one of the nine declared states.
func (s ExecutionStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// StateTransition is one entry of the append-only history log kept alongside
// the execution state document for audit and debugging.
type StateTransition struct {
	From      ExecutionStatus `json:"from"`
	To        ExecutionStatus `json:"to"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// BlockResultSnapshot is the per-block result entry of the state document.
type BlockResultSnapshot struct {
	Result    map[string]any `json:"result,omitempty"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// Checkpoint is a named, timestamped deep snapshot of the state document,
// restorable later.
type Checkpoint struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	StateSnapshot *ExecutionState `json:"state_snapshot"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ExecutionState is the distributed execution-state document. It is mutated
// only through declared transitions and mirrored to the shared store with a
// TTL for cross-process durability.
type ExecutionState struct {
	ExecutionID    string                         `json:"execution_id"`
	WorkflowID     string                         `json:"workflow_id"`
	Status         ExecutionStatus                `json:"state"`
	InputData      map[string]any                 `json:"input_data,omitempty"`
	OutputData     map[string]any                 `json:"output_data,omitempty"`
	CurrentBlockID string                         `json:"current_block_id,omitempty"`
	BlockResults   map[string]BlockResultSnapshot `json:"block_results,omitempty"`
	Checkpoints    []Checkpoint                   `json:"checkpoints,omitempty"`
	Metadata       map[string]any                 `json:"metadata,omitempty"`
	CreatedAt      time.Time                      `json:"created_at"`
	UpdatedAt      time.Time                      `json:"updated_at"`
	StartedAt      *time.Time                     `json:"started_at,omitempty"`
	CompletedAt    *time.Time                     `json:"completed_at,omitempty"`
	Error          string                         `json:"error,omitempty"`
}

// Clone returns a deep copy of the document. Checkpoint snapshots are shared
// between copies only when cloning for a checkpoint would recurse; checkpoint
// lists themselves are copied.
func (s *ExecutionState) Clone() *ExecutionState {
	clone := *s

	clone.InputData = copyMap(s.InputData)
	clone.OutputData = copyMap(s.OutputData)
	clone.Metadata = copyMap(s.Metadata)

	if s.BlockResults != nil {
		clone.BlockResults = make(map[string]BlockResultSnapshot, len(s.BlockResults))
		for k, v := range s.BlockResults {
			v.Result = copyMap(v.Result)
			clone.BlockResults[k] = v
		}
	}

	if s.Checkpoints != nil {
		clone.Checkpoints = make([]Checkpoint, len(s.Checkpoints))
		copy(clone.Checkpoints, s.Checkpoints)
	}

	return &clone
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
