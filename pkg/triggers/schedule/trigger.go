// Package schedule provides the cron-based trigger. Each fire invokes the
// registered callback with a timestamped payload; the callback publishes the
// workflow.triggered event that workers pick up.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowgrid/flowgrid/pkg/protocol"
)

// Trigger fires a workflow on a cron schedule.
type Trigger struct {
	ID         string
	CronExpr   string
	WorkflowID string
	Enabled    bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

// NewTrigger builds a schedule trigger from its configuration map.
func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)
	workflowID, _ := config["workflow_id"].(string)

	enabled := true
	if v, ok := config["enabled"].(bool); ok {
		enabled = v
	}

	trigger := &Trigger{
		ID:         id,
		CronExpr:   cronExpr,
		WorkflowID: workflowID,
		Enabled:    enabled,
		logger: logger.With(
			"module", "schedule_trigger",
			"trigger_id", id,
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate checks the trigger's identity and cron expression.
func (t *Trigger) Validate() error {
	if t.ID == "" {
		return errors.New("schedule trigger ID is required")
	}

	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start registers the cron job. Overlapping fires are skipped while a
// previous callback is still running.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "Schedule trigger is disabled")

		return nil
	}

	t.callback = callback
	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	entryID, err := t.cron.AddFunc(t.CronExpr, t.fire)
	if err != nil {
		return fmt.Errorf("add cron job for trigger %s: %w", t.ID, err)
	}

	t.logger.InfoContext(ctx, "Schedule trigger started", "cron_entry", entryID)
	t.cron.Start()

	return nil
}

func (t *Trigger) fire() {
	t.logger.Info("Cron schedule fired")

	data := map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"trigger_id":  t.ID,
		"workflow_id": t.WorkflowID,
	}

	go func() {
		if err := t.callback(context.Background(), data); err != nil {
			t.logger.Error("Scheduled workflow trigger failed", "error", err)
		}
	}()
}

// Stop halts the cron scheduler. Already-running callbacks finish on their own.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
