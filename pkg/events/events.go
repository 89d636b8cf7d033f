// Package events defines event types and structures for execution lifecycle
// notifications.
package events

import (
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
)

type EventType string

// Kafka topic carrying every lifecycle event.
const Topic = "flowgrid.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger-side events.
	WorkflowTriggeredEvent EventType = "workflow.triggered"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionTimeoutEvent   EventType = "execution.timeout"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"

	// Per-block events.
	BlockFinishedEvent EventType = "block.finished"
	BlockFailedEvent   EventType = "block.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// WorkflowTriggered asks a worker to start an execution.
type WorkflowTriggered struct {
	BaseEvent

	TriggerID      string         `json:"trigger_id"`
	TriggerKind    string         `json:"trigger_kind"`
	TriggerData    map[string]any `json:"trigger_data,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

func (e WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string         `json:"execution_id"`
	WorkflowName string         `json:"workflow_name"`
	TriggerKind  string         `json:"trigger_kind"`
	Variables    map[string]any `json:"variables,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Output      map[string]any `json:"output,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string            `json:"execution_id"`
	Error       *models.ErrorInfo `json:"error"`
	Duration    time.Duration     `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ExecutionTimeout struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionTimeout) GetType() EventType {
	return ExecutionTimeoutEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type BlockFinished struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	BlockID     string         `json:"block_id"`
	BlockType   string         `json:"block_type"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

func (e BlockFinished) GetType() EventType {
	return BlockFinishedEvent
}

type BlockFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	BlockID     string        `json:"block_id"`
	BlockType   string        `json:"block_type"`
	Error       string        `json:"error"`
	ErrorType   string        `json:"error_type"`
	Duration    time.Duration `json:"duration"`
}

func (e BlockFailed) GetType() EventType {
	return BlockFailedEvent
}
