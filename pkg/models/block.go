// Package models defines the core domain models for block-based workflow execution.
package models

// Built-in control-flow block types interpreted by the engine itself. Every
// other type is resolved through the block registry.
const (
	BlockTypeCondition = "condition"
	BlockTypeLoop      = "loop"
	BlockTypeParallel  = "parallel"
)

// Block represents a typed unit of work in a workflow graph. Blocks are owned
// by the workflow definition and are read-only to the engine.
type Block struct {
	ID           string         `json:"id"             validate:"required"`
	Type         string         `json:"type"           validate:"required"`
	Name         string         `json:"name"`
	Config       map[string]any `json:"config"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	Enabled      bool           `json:"enabled"`
}

// IsControlFlow reports whether the block is interpreted by the engine rather
// than dispatched to the registry.
func (b *Block) IsControlFlow() bool {
	switch b.Type {
	case BlockTypeCondition, BlockTypeLoop, BlockTypeParallel:
		return true
	}

	return false
}

// Edge is a directed connection between two blocks. SourceHandle carries the
// branch label used by condition blocks ("true", "false", custom paths); an
// empty handle means the default output.
type Edge struct {
	ID            string `json:"id"`
	SourceBlockID string `json:"source_block_id" validate:"required"`
	TargetBlockID string `json:"target_block_id" validate:"required"`
	SourceHandle  string `json:"source_handle,omitempty"`
}
