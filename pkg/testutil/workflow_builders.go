// Package testutil provides builders for the graph fixtures used across the
// engine, scheduler and web tests.
package testutil

import (
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// BlockBuilder builds a workflow block for tests.
type BlockBuilder struct {
	block *models.Block
}

// NewBlock creates a builder for an enabled block of the given type.
func NewBlock(id, blockType string) *BlockBuilder {
	return &BlockBuilder{
		block: &models.Block{
			ID:      id,
			Type:    blockType,
			Name:    id,
			Config:  map[string]any{},
			Inputs:  map[string]any{},
			Enabled: true,
		},
	}
}

// WithName sets the display name.
func (b *BlockBuilder) WithName(name string) *BlockBuilder {
	b.block.Name = name

	return b
}

// WithConfig sets one config entry.
func (b *BlockBuilder) WithConfig(key string, value any) *BlockBuilder {
	b.block.Config[key] = value

	return b
}

// WithInput sets one input mapping entry.
func (b *BlockBuilder) WithInput(key string, value any) *BlockBuilder {
	b.block.Inputs[key] = value

	return b
}

// Disabled marks the block as disabled.
func (b *BlockBuilder) Disabled() *BlockBuilder {
	b.block.Enabled = false

	return b
}

// Build returns the block.
func (b *BlockBuilder) Build() *models.Block {
	return b.block
}

// NewEdge creates an edge between two blocks.
func NewEdge(id, source, target string) *models.Edge {
	return &models.Edge{
		ID:            id,
		SourceBlockID: source,
		TargetBlockID: target,
	}
}

// NewHandleEdge creates an edge that only activates for a condition handle.
func NewHandleEdge(id, source, target, handle string) *models.Edge {
	return &models.Edge{
		ID:            id,
		SourceBlockID: source,
		TargetBlockID: target,
		SourceHandle:  handle,
	}
}

// WorkflowBuilder builds a published workflow for tests.
type WorkflowBuilder struct {
	workflow *models.Workflow
}

// NewWorkflow creates a builder for a published workflow.
func NewWorkflow(id string) *WorkflowBuilder {
	now := time.Now().UTC()

	return &WorkflowBuilder{
		workflow: &models.Workflow{
			ID:        id,
			Name:      id,
			Status:    models.WorkflowStatusPublished,
			Variables: map[string]any{},
			Metadata:  map[string]any{},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// WithName overrides the workflow name.
func (b *WorkflowBuilder) WithName(name string) *WorkflowBuilder {
	b.workflow.Name = name

	return b
}

// WithBlocks appends blocks in declaration order.
func (b *WorkflowBuilder) WithBlocks(blocks ...*models.Block) *WorkflowBuilder {
	b.workflow.Blocks = append(b.workflow.Blocks, blocks...)

	return b
}

// WithEdges appends edges in declaration order.
func (b *WorkflowBuilder) WithEdges(edges ...*models.Edge) *WorkflowBuilder {
	b.workflow.Edges = append(b.workflow.Edges, edges...)

	return b
}

// WithVariable sets one workflow variable.
func (b *WorkflowBuilder) WithVariable(key string, value any) *WorkflowBuilder {
	b.workflow.Variables[key] = value

	return b
}

// WithStatus overrides the workflow status.
func (b *WorkflowBuilder) WithStatus(status models.WorkflowStatus) *WorkflowBuilder {
	b.workflow.Status = status

	return b
}

// Build returns the workflow.
func (b *WorkflowBuilder) Build() *models.Workflow {
	return b.workflow
}
