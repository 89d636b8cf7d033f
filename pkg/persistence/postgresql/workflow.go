package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// WorkflowRepository reads workflow definitions from the workflows table. The
// full definition lives in the JSONB column; id and status are projected out
// for filtering.
type WorkflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Workflows loads every workflow definition.
func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT definition FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, persistence.NewWorkflowError("Workflows", "", err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewWorkflowError("Workflows", "", err)
		}

		var workflow models.Workflow
		if err := json.Unmarshal(raw, &workflow); err != nil {
			return nil, persistence.NewWorkflowError("Workflows", "", err)
		}

		workflows = append(workflows, &workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewWorkflowError("Workflows", "", err)
	}

	return workflows, nil
}

// WorkflowByID loads one workflow definition.
func (r *WorkflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT definition FROM workflows WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(raw, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}
