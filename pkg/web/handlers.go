package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/flowgrid/flowgrid/pkg/dlq"
	"github.com/flowgrid/flowgrid/pkg/engine"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/registry"
)

// APIHandlers exposes the execution engine over HTTP.
type APIHandlers struct {
	engine      *engine.Engine
	persistence persistence.Persistence
	deadLetters *dlq.Queue
	registry    *registry.Registry
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	persist persistence.Persistence,
	deadLetters *dlq.Queue,
	reg *registry.Registry,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		persistence: persist,
		deadLetters: deadLetters,
		registry:    reg,
		validator:   validate,
	}
}

// ExecuteWorkflow starts a synchronous execution of a published workflow.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.Execute(c.Context(), engine.ExecuteRequest{
		WorkflowID:     req.WorkflowID,
		UserID:         req.UserID,
		Trigger:        models.TriggerKindAPI,
		Input:          req.Input,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	status := fiber.StatusCreated
	if result.Duplicate {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(FromExecuteResult(req.WorkflowID, result))
}

// GetExecution returns the current state document of an execution.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	doc, err := h.engine.States().Get(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(FromExecutionState(doc))
}

// GetExecutionHistory returns the append-only transition log of an execution.
func (h *APIHandlers) GetExecutionHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	// A missing execution and an empty history look the same on the log
	// list, so check the document first.
	if _, err := h.engine.States().Get(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	history, err := h.engine.States().History(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution_id": id,
		"transitions":  history,
	})
}

// PauseExecution asks a running execution to stop before its next block.
func (h *APIHandlers) PauseExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	doc, err := h.engine.Pause(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(FromExecutionState(doc))
}

// ResumeExecution moves a paused execution back to running, optionally
// restoring a checkpoint first.
func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ResumeExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	doc, err := h.engine.Resume(c.Context(), id, req.CheckpointID)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(FromExecutionState(doc))
}

// CancelExecution requests cooperative cancellation of an execution.
func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req CancelExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	doc, err := h.engine.Cancel(c.Context(), id, req.Reason)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(FromExecutionState(doc))
}

// GetWorkflows lists the stored workflow definitions.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.WorkflowRepository().Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, workflow := range workflows {
		summaries = append(summaries, FromWorkflow(workflow))
	}

	return c.JSON(fiber.Map{
		"workflows":   summaries,
		"total_count": len(summaries),
	})
}

// GetWorkflow returns one complete workflow definition.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

// GetDeadLetters lists the failed executions waiting in the dead letter queue.
func (h *APIHandlers) GetDeadLetters(c fiber.Ctx) error {
	entries, err := h.deadLetters.Entries(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries":     entries,
		"total_count": len(entries),
	})
}

// GetBlockTypes lists the registered block types.
func (h *APIHandlers) GetBlockTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"block_types": h.registry.AvailableBlocks(),
	})
}

// HealthCheck reports persistence reachability.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	checks := fiber.Map{"persistence": "ok"}
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		checks["persistence"] = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"checkers":  checks,
		"timestamp": time.Now().UTC(),
	})
}
