package log_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/blocks/log"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func execContext() *models.ExecutionContext {
	workflow := testutil.NewWorkflow("wf-1").Build()

	return models.NewExecutionContext("exec-1", workflow, "user-1", models.TriggerKindManual)
}

func TestExecuteLogsAndEchoesMessage(t *testing.T) {
	block, err := log.NewLogBlock(map[string]any{"level": "info"})
	require.NoError(t, err)

	outputs, err := block.Execute(context.Background(), map[string]any{"message": "hello"}, execContext())
	require.NoError(t, err)

	assert.Equal(t, "hello", outputs["message"])
	assert.Equal(t, "info", outputs["level"])
	assert.Equal(t, true, outputs["logged"])
}

func TestExecuteStringifiesNonStringMessage(t *testing.T) {
	block, err := log.NewLogBlock(nil)
	require.NoError(t, err)

	outputs, err := block.Execute(context.Background(), map[string]any{"message": 42}, execContext())
	require.NoError(t, err)

	assert.Equal(t, "42", outputs["message"])
}

func TestExecuteMissingMessage(t *testing.T) {
	block, err := log.NewLogBlock(nil)
	require.NoError(t, err)

	_, err = block.Execute(context.Background(), map[string]any{}, execContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestNewLogBlockLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		_, err := log.NewLogBlock(map[string]any{"level": level})
		require.NoError(t, err, level)
	}

	_, err := log.NewLogBlock(map[string]any{"level": "verbose"})
	require.Error(t, err)
}

func TestFactoryMetadata(t *testing.T) {
	factory := log.NewLogBlockFactory()

	assert.Equal(t, "log", factory.Type())
	require.NotNil(t, factory.InputSchema())

	block, err := factory.Create(map[string]any{})
	require.NoError(t, err)
	assert.NotNil(t, block)
}
