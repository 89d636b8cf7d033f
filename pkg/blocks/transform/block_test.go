package transform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/blocks/transform"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func execContext(variables map[string]any) *models.ExecutionContext {
	builder := testutil.NewWorkflow("wf-1")
	for k, v := range variables {
		builder = builder.WithVariable(k, v)
	}

	return models.NewExecutionContext("exec-1", builder.Build(), "user-1", models.TriggerKindManual)
}

func TestNewTransformBlockRequiresExpression(t *testing.T) {
	_, err := transform.NewTransformBlock(map[string]any{})
	require.Error(t, err)
}

func TestExecuteRendersAgainstVariables(t *testing.T) {
	block, err := transform.NewTransformBlock(map[string]any{"expression": "order {{order_id}}"})
	require.NoError(t, err)

	outputs, err := block.Execute(context.Background(),
		nil, execContext(map[string]any{"order_id": 42}))
	require.NoError(t, err)

	assert.Equal(t, "order 42", outputs["result"])
}

func TestExecuteInputsShadowVariables(t *testing.T) {
	block, err := transform.NewTransformBlock(map[string]any{"expression": "{{name}}"})
	require.NoError(t, err)

	outputs, err := block.Execute(context.Background(),
		map[string]any{"name": "from-input"},
		execContext(map[string]any{"name": "from-variable"}))
	require.NoError(t, err)

	assert.Equal(t, "from-input", outputs["result"])
}

func TestExecuteSolePlaceholderKeepsType(t *testing.T) {
	block, err := transform.NewTransformBlock(map[string]any{"expression": "{{payload}}"})
	require.NoError(t, err)

	payload := map[string]any{"nested": true}

	outputs, err := block.Execute(context.Background(),
		map[string]any{"payload": payload}, execContext(nil))
	require.NoError(t, err)

	assert.Equal(t, payload, outputs["result"])
}
