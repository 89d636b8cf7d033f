// Package log provides the built-in logging block.
package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// LogBlock writes a message to the structured log at a configured level and
// echoes it as its output.
type LogBlock struct {
	level  string
	logger *slog.Logger
}

// NewLogBlock creates a logging block. Level defaults to "info".
func NewLogBlock(config map[string]any) (*LogBlock, error) {
	level := "info"
	if lvl, ok := config["level"].(string); ok {
		level = lvl
	}

	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	return &LogBlock{
		level:  level,
		logger: slog.Default().With("module", "log_block"),
	}, nil
}

// Execute logs the resolved message and returns it.
func (b *LogBlock) Execute(ctx context.Context, inputs map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	raw, ok := inputs["message"]
	if !ok {
		return nil, fmt.Errorf("%w: missing required input 'message'", models.ErrValidation)
	}

	message := fmt.Sprintf("%v", raw)
	logger := b.logger.With("execution_id", execCtx.ExecutionID, "workflow_id", execCtx.WorkflowID)

	switch b.level {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return map[string]any{
		"message": message,
		"level":   b.level,
		"logged":  true,
	}, nil
}
