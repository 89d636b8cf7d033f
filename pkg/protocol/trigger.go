package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback is invoked by a trigger with the external payload that
// should start a workflow execution.
type TriggerCallback func(ctx context.Context, data map[string]any) error

// Trigger is a long-running source of execution requests (cron schedule,
// queue, webhook). Trigger business logic lives outside the engine.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerFactory creates trigger instances from configuration.
type TriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string
}
