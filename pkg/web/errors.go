package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/state"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine and persistence errors to problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsNotFound(err), errors.Is(err, state.ErrExecutionNotFound):
		return notFound(c, err.Error())

	case errors.Is(err, persistence.ErrWorkflowNotPublished):
		return conflict(c, "workflow_not_published", "workflow is not published")

	case errors.Is(err, models.ErrLockAcquisition):
		problem := problems.NewStatusProblem(fiber.StatusTooManyRequests).
			WithInstance(c.Path()).
			WithType("execution_busy").
			WithDetail("another execution of this workflow is in progress, retry later")

		return c.Status(fiber.StatusTooManyRequests).JSON(problem)

	case errors.Is(err, models.ErrInvalidStateTransition):
		return conflict(c, "invalid_state_transition", err.Error())

	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrCyclicDependency):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
