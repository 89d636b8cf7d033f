package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// ExecutionRepository stores execution contexts as JSONB documents, upserting
// on execution id so the latest snapshot wins.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// SaveExecution upserts the execution snapshot.
func (r *ExecutionRepository) SaveExecution(ctx context.Context, execution *models.ExecutionContext) error {
	raw, err := json.Marshal(execution)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ExecutionID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, status, context, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			context = EXCLUDED.context,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		execution.ExecutionID,
		execution.WorkflowID,
		string(execution.Status),
		raw,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("SaveExecution", execution.ExecutionID, err)
	}

	return nil
}

// ExecutionByID loads one execution record.
func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.ExecutionContext, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT context FROM executions WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	var execution models.ExecutionContext
	if err := json.Unmarshal(raw, &execution); err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &execution, nil
}

// ExecutionsByWorkflow loads every execution record of a workflow, newest
// first.
func (r *ExecutionRepository) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionContext, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT context FROM executions WHERE workflow_id = $1 ORDER BY created_at DESC`, workflowID)
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionsByWorkflow", "", err)
	}
	defer rows.Close()

	executions := make([]*models.ExecutionContext, 0)

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewExecutionError("ExecutionsByWorkflow", "", err)
		}

		var execution models.ExecutionContext
		if err := json.Unmarshal(raw, &execution); err != nil {
			return nil, persistence.NewExecutionError("ExecutionsByWorkflow", "", err)
		}

		executions = append(executions, &execution)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("ExecutionsByWorkflow", "", err)
	}

	return executions, nil
}
