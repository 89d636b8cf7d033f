package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func TestNewExecutionContextSnapshotsEnvironment(t *testing.T) {
	t.Setenv("FLOWGRID_TEST_TOKEN", "initial")

	workflow := testutil.NewWorkflow("wf-env").
		WithVariable("who", "world").
		WithBlocks(testutil.NewBlock("a", "log").Build()).
		Build()

	execCtx := models.NewExecutionContext("exec-1", workflow, "", models.TriggerKindManual)

	require.NotNil(t, execCtx.Environment)
	assert.Equal(t, "initial", execCtx.Environment["FLOWGRID_TEST_TOKEN"])
	assert.Equal(t, "world", execCtx.Variables["who"])

	// Later process-level changes do not leak into a running execution.
	t.Setenv("FLOWGRID_TEST_TOKEN", "changed")
	assert.Equal(t, "initial", execCtx.Environment["FLOWGRID_TEST_TOKEN"])
}
