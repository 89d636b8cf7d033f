package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/protocol"
	"github.com/flowgrid/flowgrid/pkg/registry"
)

// TriggerDispatcher starts the triggers declared on published workflows and
// publishes a workflow.triggered event each time one fires. Trigger
// definitions live in the workflow's metadata under "triggers":
//
//	"metadata": {"triggers": [{"id": "nightly", "type": "schedule", "cron": "0 2 * * *"}]}
type TriggerDispatcher struct {
	logger    *slog.Logger
	workflows persistence.WorkflowRepository
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	workerID  string

	running []protocol.Trigger
}

func NewTriggerDispatcher(
	workflows persistence.WorkflowRepository,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	workerID string,
	logger *slog.Logger,
) *TriggerDispatcher {
	return &TriggerDispatcher{
		logger:    logger.With("module", "trigger_dispatcher"),
		workflows: workflows,
		registry:  reg,
		publisher: publisher,
		workerID:  workerID,
	}
}

// Start creates and starts every declared trigger of every published workflow.
// A broken trigger definition is logged and skipped so one bad workflow cannot
// keep the rest from being scheduled.
func (d *TriggerDispatcher) Start(ctx context.Context) error {
	workflows, err := d.workflows.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("load workflows for trigger dispatch: %w", err)
	}

	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusPublished {
			continue
		}

		for _, definition := range triggerDefinitions(workflow) {
			if err := d.startTrigger(ctx, workflow, definition); err != nil {
				d.logger.ErrorContext(ctx, "Failed to start trigger",
					"workflow_id", workflow.ID, "error", err)
			}
		}
	}

	d.logger.InfoContext(ctx, "Trigger dispatcher started", "triggers", len(d.running))

	return nil
}

// Stop halts all running triggers.
func (d *TriggerDispatcher) Stop(ctx context.Context) {
	for _, trigger := range d.running {
		if err := trigger.Stop(ctx); err != nil {
			d.logger.ErrorContext(ctx, "Failed to stop trigger", "error", err)
		}
	}

	d.running = nil
}

func (d *TriggerDispatcher) startTrigger(ctx context.Context, workflow *models.Workflow, definition map[string]any) error {
	triggerType, _ := definition["type"].(string)
	if triggerType == "" {
		return fmt.Errorf("trigger definition on workflow %s has no type", workflow.ID)
	}

	config := make(map[string]any, len(definition)+1)
	for k, v := range definition {
		config[k] = v
	}

	config["workflow_id"] = workflow.ID

	trigger, err := d.registry.CreateTrigger(triggerType, config)
	if err != nil {
		return err
	}

	workflowID := workflow.ID
	triggerID, _ := definition["id"].(string)

	callback := func(ctx context.Context, data map[string]any) error {
		event := events.WorkflowTriggered{
			BaseEvent: events.BaseEvent{
				ID:         uuid.New().String(),
				Type:       events.WorkflowTriggeredEvent,
				Timestamp:  time.Now().UTC(),
				WorkflowID: workflowID,
				WorkerID:   d.workerID,
			},
			TriggerID:   triggerID,
			TriggerKind: triggerType,
			TriggerData: data,
		}

		return d.publisher.Publish(ctx, workflowID, event)
	}

	if err := trigger.Start(ctx, callback); err != nil {
		return err
	}

	d.running = append(d.running, trigger)

	return nil
}

func triggerDefinitions(workflow *models.Workflow) []map[string]any {
	raw, ok := workflow.Metadata["triggers"]
	if !ok {
		return nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	definitions := make([]map[string]any, 0, len(list))

	for _, item := range list {
		if definition, ok := item.(map[string]any); ok {
			definitions = append(definitions, definition)
		}
	}

	return definitions
}
