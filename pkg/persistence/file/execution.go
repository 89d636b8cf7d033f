package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

const fileMode = 0o644

// ExecutionRepository stores execution records as
// <root>/executions/<execution id>.json.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// SaveExecution writes the full execution context, replacing any previous
// snapshot of the same execution.
func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.ExecutionContext) error {
	dir := path.Join(r.root, "executions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ExecutionID, err)
	}

	raw, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ExecutionID, err)
	}

	if err := os.WriteFile(path.Join(dir, execution.ExecutionID+".json"), raw, fileMode); err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ExecutionID, err)
	}

	return nil
}

// ExecutionByID loads one execution record.
func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.ExecutionContext, error) {
	raw, err := os.ReadFile(path.Join(r.root, "executions", id+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	var execution models.ExecutionContext
	if err := json.Unmarshal(raw, &execution); err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &execution, nil
}

// ExecutionsByWorkflow loads every execution record of a workflow.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionContext, error) {
	dir := os.DirFS(path.Join(r.root, "executions"))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionsByWorkflow", "", err)
	}

	executions := make([]*models.ExecutionContext, 0)

	for _, file := range files {
		execution, err := r.ExecutionByID(ctx, file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}
