// Package transform provides the built-in data transformation block.
package transform

import (
	"context"
	"fmt"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/template"
)

// TransformBlock reshapes data by rendering a configured expression against
// the run's variables merged with the block's inputs.
type TransformBlock struct {
	expression string
}

// NewTransformBlock creates a data transformation block.
func NewTransformBlock(config map[string]any) (*TransformBlock, error) {
	expression, ok := config["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required field 'expression'")
	}

	return &TransformBlock{expression: expression}, nil
}

// Execute renders the expression. Inputs shadow workflow variables of the
// same name for the duration of the call.
func (b *TransformBlock) Execute(ctx context.Context, inputs map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	scope := make(map[string]any, len(execCtx.Variables)+len(inputs))
	for key, value := range execCtx.Variables {
		scope[key] = value
	}

	for key, value := range inputs {
		scope[key] = value
	}

	return map[string]any{
		"result": template.RenderScoped(b.expression, scope, execCtx.Environment),
	}, nil
}
