// Package persistence provides the data storage abstraction for workflows and
// execution records. The engine reads workflow definitions and writes
// execution contexts; definition authoring happens outside this system.
package persistence

import (
	"context"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// WorkflowRepository is the read side of workflow definitions.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
}

// ExecutionRepository stores finished and in-flight execution contexts.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.ExecutionContext) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionContext, error)
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionContext, error)
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
