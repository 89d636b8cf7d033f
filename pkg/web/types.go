// Package web provides the HTTP handlers and request/response types of the
// execution API.
package web

import (
	"time"

	"github.com/flowgrid/flowgrid/pkg/engine"
	"github.com/flowgrid/flowgrid/pkg/models"
)

// ExecuteWorkflowRequest is the body of POST /executions.
type ExecuteWorkflowRequest struct {
	WorkflowID     string         `json:"workflow_id"               validate:"required"`
	UserID         string         `json:"user_id,omitempty"`
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// ResumeExecutionRequest is the body of POST /executions/:id/resume. An empty
// checkpoint ID resumes from the current document without restoring.
type ResumeExecutionRequest struct {
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// CancelExecutionRequest is the body of POST /executions/:id/cancel.
type CancelExecutionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ExecutionResponse is the uniform execution payload returned by the API.
type ExecutionResponse struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id,omitempty"`
	Status      models.ExecutionStatus `json:"status"`
	Success     bool                   `json:"success"`
	Duplicate   bool                   `json:"duplicate,omitempty"`
	Output      map[string]any         `json:"output,omitempty"`
	Error       *models.ErrorInfo      `json:"error,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// FromExecuteResult converts an engine result for the API.
func FromExecuteResult(workflowID string, result *engine.ExecuteResult) ExecutionResponse {
	return ExecutionResponse{
		ExecutionID: result.ExecutionID,
		WorkflowID:  workflowID,
		Status:      result.Status,
		Success:     result.Success,
		Duplicate:   result.Duplicate,
		Output:      result.Output,
		Error:       result.Error,
	}
}

// FromExecutionState converts a state document for the API, dropping
// internals like checkpoint snapshots.
func FromExecutionState(doc *models.ExecutionState) ExecutionResponse {
	response := ExecutionResponse{
		ExecutionID: doc.ExecutionID,
		WorkflowID:  doc.WorkflowID,
		Status:      doc.Status,
		Success:     doc.Status == models.ExecutionStatusCompleted,
		Output:      doc.OutputData,
		StartedAt:   doc.StartedAt,
		CompletedAt: doc.CompletedAt,
	}

	if doc.Error != "" {
		response.Error = &models.ErrorInfo{
			Type:    models.ErrorTypeInternal,
			Message: doc.Error,
		}
	}

	return response
}

// WorkflowSummary is the list-view projection of a workflow definition.
type WorkflowSummary struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Status      models.WorkflowStatus `json:"status"`
	BlockCount  int                   `json:"block_count"`
	Owner       string                `json:"owner,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// FromWorkflow builds the list-view projection.
func FromWorkflow(workflow *models.Workflow) WorkflowSummary {
	return WorkflowSummary{
		ID:          workflow.ID,
		Name:        workflow.Name,
		Description: workflow.Description,
		Status:      workflow.Status,
		BlockCount:  len(workflow.Blocks),
		Owner:       workflow.Owner,
		UpdatedAt:   workflow.UpdatedAt,
	}
}
