package delay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/blocks/delay"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func execContext() *models.ExecutionContext {
	workflow := testutil.NewWorkflow("wf-1").Build()

	return models.NewExecutionContext("exec-1", workflow, "user-1", models.TriggerKindManual)
}

func TestNewDelayBlockValidatesDuration(t *testing.T) {
	_, err := delay.NewDelayBlock(map[string]any{})
	require.Error(t, err)

	_, err = delay.NewDelayBlock(map[string]any{"duration_ms": "soon"})
	require.Error(t, err)

	_, err = delay.NewDelayBlock(map[string]any{"duration_ms": -5})
	require.Error(t, err)

	// Above the 5 minute ceiling.
	_, err = delay.NewDelayBlock(map[string]any{"duration_ms": 10 * 60 * 1000})
	require.Error(t, err)

	_, err = delay.NewDelayBlock(map[string]any{"duration_ms": 100})
	require.NoError(t, err)

	// JSON numbers decode as float64.
	_, err = delay.NewDelayBlock(map[string]any{"duration_ms": float64(100)})
	require.NoError(t, err)
}

func TestExecuteWaitsAndReportsDuration(t *testing.T) {
	block, err := delay.NewDelayBlock(map[string]any{"duration_ms": 20})
	require.NoError(t, err)

	started := time.Now()

	outputs, err := block.Execute(context.Background(), nil, execContext())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
	assert.EqualValues(t, 20, outputs["delayed_ms"])
}

func TestExecuteCancelledContext(t *testing.T) {
	block, err := delay.NewDelayBlock(map[string]any{"duration_ms": 60 * 1000})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = block.Execute(ctx, nil, execContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrBlockExecution))
}
