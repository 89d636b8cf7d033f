package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowgrid/flowgrid/pkg/engine"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/models"
)

// WorkerManager consumes workflow.triggered events and drives executions
// through the engine.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	engine   *engine.Engine
	eventBus eventbus.EventBus
}

func NewWorkerManager(
	id string,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "flowgrid-worker", "worker_id", id),
		engine:   eng,
		eventBus: eventBus,
	}
}

// Start subscribes to trigger events and blocks until SIGINT or SIGTERM.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	if err := w.eventBus.Handle(events.WorkflowTriggeredEvent, w.handleWorkflowTriggered); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleWorkflowTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.WorkflowTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for WorkflowTriggered")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", triggered.WorkflowID,
		"trigger_id", triggered.TriggerID,
		"event_id", triggered.ID,
	)
	logger.InfoContext(ctx, "Processing workflow triggered event")

	trigger := models.TriggerKind(triggered.TriggerKind)
	if trigger == "" {
		trigger = models.TriggerKindSchedule
	}

	result, err := w.engine.Execute(ctx, engine.ExecuteRequest{
		WorkflowID:     triggered.WorkflowID,
		Trigger:        trigger,
		Input:          triggered.TriggerData,
		IdempotencyKey: triggered.IdempotencyKey,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute workflow", "error", err)

		return err
	}

	if result.Duplicate {
		logger.InfoContext(ctx, "Duplicate trigger ignored", "execution_id", result.ExecutionID)

		return nil
	}

	logger.InfoContext(ctx, "Workflow execution finished",
		"execution_id", result.ExecutionID, "status", result.Status, "success", result.Success)

	return nil
}
