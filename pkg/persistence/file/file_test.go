package file_test

import (
	"context"
	"errors"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/persistence/file"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func writeYAMLWorkflow(t *testing.T, root, id, body string) {
	t.Helper()

	dir := path.Join(root, "workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path.Join(dir, id+".yaml"), []byte(body), 0o644))
}

func TestWorkflowByIDLoadsJSONDefinition(t *testing.T) {
	root := t.TempDir()
	testutil.WriteWorkflowFile(t, root, testutil.NewWorkflow("wf-json").
		WithBlocks(testutil.NewBlock("greet", "log").WithConfig("message", "hi").Build()).
		Build())

	persist := file.NewPersistence(root)

	workflow, err := persist.WorkflowRepository().WorkflowByID(context.Background(), "wf-json")
	require.NoError(t, err)

	assert.Equal(t, "wf-json", workflow.ID)
	assert.Equal(t, models.WorkflowStatusPublished, workflow.Status)
	require.Len(t, workflow.Blocks, 1)
	assert.Equal(t, "log", workflow.Blocks[0].Type)
}

func TestWorkflowByIDLoadsYAMLDefinition(t *testing.T) {
	root := t.TempDir()
	writeYAMLWorkflow(t, root, "wf-yaml", `
id: wf-yaml
name: greeter
status: published
blocks:
  - id: greet
    type: log
    enabled: true
    config:
      message: hi
edges: []
`)

	persist := file.NewPersistence(root)

	workflow, err := persist.WorkflowRepository().WorkflowByID(context.Background(), "wf-yaml")
	require.NoError(t, err)

	assert.Equal(t, "greeter", workflow.Name)
	require.Len(t, workflow.Blocks, 1)
	assert.Equal(t, "greet", workflow.Blocks[0].ID)
	assert.Equal(t, "hi", workflow.Blocks[0].Config["message"])
}

func TestWorkflowByIDPrefersJSONOverYAML(t *testing.T) {
	root := t.TempDir()
	testutil.WriteWorkflowFile(t, root, testutil.NewWorkflow("wf-1").WithName("from-json").Build())
	writeYAMLWorkflow(t, root, "wf-1", "id: wf-1\nname: from-yaml\nstatus: published\n")

	persist := file.NewPersistence(root)

	workflow, err := persist.WorkflowRepository().WorkflowByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "from-json", workflow.Name)
}

func TestWorkflowByIDUnknownID(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())

	_, err := persist.WorkflowRepository().WorkflowByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, persistence.ErrWorkflowNotFound))
}

func TestWorkflowsListsEachDefinitionOnce(t *testing.T) {
	root := t.TempDir()
	testutil.WriteWorkflowFile(t, root, testutil.NewWorkflow("wf-a").Build())
	testutil.WriteWorkflowFile(t, root, testutil.NewWorkflow("wf-b").Build())
	writeYAMLWorkflow(t, root, "wf-b", "id: wf-b\nname: shadowed\nstatus: published\n")
	writeYAMLWorkflow(t, root, "wf-c", "id: wf-c\nname: wf-c\nstatus: draft\n")

	persist := file.NewPersistence(root)

	workflows, err := persist.WorkflowRepository().Workflows(context.Background())
	require.NoError(t, err)
	assert.Len(t, workflows, 3)
}

func TestWorkflowsEmptyRoot(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())

	workflows, err := persist.WorkflowRepository().Workflows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestSaveAndLoadExecution(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())
	repo := persist.ExecutionRepository()
	ctx := context.Background()

	workflow := testutil.NewWorkflow("wf-1").
		WithBlocks(testutil.NewBlock("greet", "log").Build()).
		Build()

	execution := models.NewExecutionContext("exec-1", workflow, "user-1", models.TriggerKindAPI)
	execution.Status = models.ExecutionStatusCompleted
	execution.Variables["who"] = "world"
	now := time.Now().UTC()
	execution.CompletedAt = &now

	require.NoError(t, repo.SaveExecution(ctx, execution))

	loaded, err := repo.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)

	assert.Equal(t, "wf-1", loaded.WorkflowID)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, "world", loaded.Variables["who"])
	require.Contains(t, loaded.BlockStates, "greet")
}

func TestExecutionByIDUnknownID(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())

	_, err := persist.ExecutionRepository().ExecutionByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, persistence.ErrExecutionNotFound))
}

func TestExecutionsByWorkflowFiltersOtherWorkflows(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())
	repo := persist.ExecutionRepository()
	ctx := context.Background()

	first := testutil.NewWorkflow("wf-1").Build()
	second := testutil.NewWorkflow("wf-2").Build()

	require.NoError(t, repo.SaveExecution(ctx, models.NewExecutionContext("exec-1", first, "", models.TriggerKindManual)))
	require.NoError(t, repo.SaveExecution(ctx, models.NewExecutionContext("exec-2", first, "", models.TriggerKindManual)))
	require.NoError(t, repo.SaveExecution(ctx, models.NewExecutionContext("exec-3", second, "", models.TriggerKindManual)))

	executions, err := repo.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	for _, execution := range executions {
		assert.Equal(t, "wf-1", execution.WorkflowID)
	}
}

func TestHealthCheck(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, file.NewPersistence(root).HealthCheck(context.Background()))
	require.Error(t, file.NewPersistence(path.Join(root, "missing")).HealthCheck(context.Background()))
}
