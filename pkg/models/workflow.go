// Package models defines the core domain models for block-based workflow execution.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft       WorkflowStatus = "draft"       // Editable, not executable
	WorkflowStatusPublished   WorkflowStatus = "published"   // Current active, executable
	WorkflowStatusUnpublished WorkflowStatus = "unpublished" // Historical, not executable
)

// Workflow represents a block-based workflow definition. The engine only ever
// reads workflows; editing and versioning are owned by the definition service.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"      validate:"required"`
	Blocks      []*Block       `json:"blocks"`
	Edges       []*Edge        `json:"edges"`
	Variables   map[string]any `json:"variables"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Owner       string         `json:"owner"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BlockByID finds a block in the definition by its identifier.
func (w *Workflow) BlockByID(id string) (*Block, bool) {
	for _, block := range w.Blocks {
		if block.ID == id {
			return block, true
		}
	}

	return nil, false
}

// EdgesFrom returns the outgoing edges of a block in declaration order.
func (w *Workflow) EdgesFrom(blockID string) []*Edge {
	var out []*Edge

	for _, edge := range w.Edges {
		if edge.SourceBlockID == blockID {
			out = append(out, edge)
		}
	}

	return out
}
