// Package postgresql provides PostgreSQL persistence for workflows and
// execution records. Definitions and records are stored as JSONB documents.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	postgres := &Persistence{
		db:            database,
		logger:        logger.With("module", "postgresql"),
		workflowRepo:  NewWorkflowRepository(database),
		executionRepo: NewExecutionRepository(database),
	}

	if err := postgres.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db == nil {
		return nil
	}

	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

func (p *Persistence) migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}

	for _, migration := range migrations() {
		applied, err := p.migrationApplied(ctx, migration.version)
		if err != nil {
			return err
		}

		if applied {
			continue
		}

		p.logger.InfoContext(ctx, "Applying migration", "version", migration.version, "name", migration.name)

		if _, err := p.db.ExecContext(ctx, migration.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", migration.version, migration.name, err)
		}

		if _, err := p.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, migration.version); err != nil {
			return err
		}
	}

	return nil
}

func (p *Persistence) migrationApplied(ctx context.Context, version int) (bool, error) {
	var count int

	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, version).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

type migration struct {
	version int
	name    string
	sql     string
}

func migrations() []migration {
	return []migration{
		{
			version: 1,
			name:    "create_workflows",
			sql: `
				CREATE TABLE workflows (
					id VARCHAR(255) PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'unpublished')),
					definition JSONB NOT NULL,
					owner VARCHAR(255),
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL
				);

				CREATE INDEX idx_workflows_status ON workflows(status);
				CREATE INDEX idx_workflows_owner ON workflows(owner);
			`,
		},
		{
			version: 2,
			name:    "create_executions",
			sql: `
				CREATE TABLE executions (
					id VARCHAR(255) PRIMARY KEY,
					workflow_id VARCHAR(255) NOT NULL,
					status VARCHAR(50) NOT NULL,
					context JSONB NOT NULL,
					started_at TIMESTAMP WITH TIME ZONE,
					completed_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
				CREATE INDEX idx_executions_status ON executions(status);
			`,
		},
	}
}
