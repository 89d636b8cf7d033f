// Package protocol defines the interfaces and contracts for pluggable blocks.
package protocol

import (
	"context"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// Block is the single capability every block type implements. Inputs arrive
// with template placeholders already resolved; outputs become the block's
// recorded result. Implementations fail with models.ErrValidation for bad or
// missing inputs (never retried) and models.ErrBlockExecution for runtime
// failures (retried when classified recoverable).
type Block interface {
	Execute(ctx context.Context, inputs map[string]any, execCtx *models.ExecutionContext) (map[string]any, error)
}

// BlockFactory creates block instances and provides metadata about the type.
type BlockFactory interface {
	// Create creates a new block instance with the given static configuration.
	Create(config map[string]any) (Block, error)

	// Type returns the unique type tag for this block type.
	Type() string

	// Name returns the human-readable name for this block type.
	Name() string

	// Description returns a description of what this block does.
	Description() string

	// ConfigSchema returns the JSON schema validating the static configuration.
	ConfigSchema() map[string]any

	// InputSchema returns the JSON schema validating per-invocation inputs.
	InputSchema() map[string]any
}
