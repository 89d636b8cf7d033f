package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/template"
)

// Loop config keys and defaults.
const (
	defaultItemVar  = "item"
	defaultIndexVar = "index"
)

// loopPlan is the precomputed iteration set of one loop block. Iterations are
// fixed before the first body run; mutations inside the body never change the
// trip count.
type loopPlan struct {
	items           []any
	itemVar         string
	indexVar        string
	body            []*models.Block
	continueOnError bool
}

// runLoop interprets a loop block: for (fixed count) or forEach (collection),
// body blocks executed in schedule order per iteration, with the variable
// namespace overlaid and restored around every iteration.
func (e *Engine) runLoop(ctx context.Context, schedule *scheduler.Schedule, block *models.Block, execCtx *models.ExecutionContext) *models.BlockResult {
	startedAt := time.Now().UTC()

	plan, err := e.planLoop(schedule, block, execCtx)
	if err != nil {
		return failedResult(startedAt, time.Since(startedAt), err)
	}

	results := make([]any, 0, len(plan.items))
	succeeded := 0
	failed := 0

	for index, item := range plan.items {
		if err := ctx.Err(); err != nil {
			return failedResult(startedAt, time.Since(startedAt),
				fmt.Errorf("%w: %v", models.ErrExecutionTimeout, err))
		}

		iterationResult, err := e.runLoopIteration(ctx, plan, block, execCtx, index, item)
		results = append(results, iterationResult)

		if err != nil {
			failed++

			if !plan.continueOnError {
				execCtx.LoopIterations[block.ID] = index + 1

				return failedResult(startedAt, time.Since(startedAt), err)
			}

			continue
		}

		succeeded++
	}

	execCtx.LoopIterations[block.ID] = len(plan.items)

	return &models.BlockResult{
		Success: true,
		Outputs: map[string]any{
			"count":     len(plan.items),
			"succeeded": succeeded,
			"failed":    failed,
			"results":   results,
		},
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}
}

// runLoopIteration overlays the iteration variables, runs the body in
// schedule order, and restores the namespace even when the body fails.
func (e *Engine) runLoopIteration(ctx context.Context, plan *loopPlan, block *models.Block, execCtx *models.ExecutionContext, index int, item any) (map[string]any, error) {
	snapshot := execCtx.SnapshotVariables()
	defer execCtx.RestoreVariables(snapshot)

	execCtx.Variables[plan.itemVar] = item
	execCtx.Variables[plan.indexVar] = index

	outputs := make(map[string]any, len(plan.body))

	for _, bodyBlock := range plan.body {
		result := e.runRegistryBlock(ctx, bodyBlock, execCtx)
		execCtx.RecordBlockResult(bodyBlock, result)

		if !result.Success {
			return map[string]any{
				"index":   index,
				"success": false,
				"error":   result.Error,
			}, blockFailure(bodyBlock, result)
		}

		outputs[bodyBlock.ID] = result.Outputs
	}

	return map[string]any{
		"index":   index,
		"success": true,
		"outputs": outputs,
	}, nil
}

func (e *Engine) planLoop(schedule *scheduler.Schedule, block *models.Block, execCtx *models.ExecutionContext) (*loopPlan, error) {
	plan := &loopPlan{
		itemVar:         defaultItemVar,
		indexVar:        defaultIndexVar,
		continueOnError: true,
	}

	if v, ok := block.Config["item_var"].(string); ok && v != "" {
		plan.itemVar = v
	}

	if v, ok := block.Config["index_var"].(string); ok && v != "" {
		plan.indexVar = v
	}

	// A failing iteration is recorded and the loop moves on; aborting on the
	// first failure is the opt-in exception.
	if v, ok := block.Config["continue_on_error"].(bool); ok {
		plan.continueOnError = v
	}

	items, err := loopItems(block, execCtx)
	if err != nil {
		return nil, models.NewValidationError(block.ID, block.Type, err.Error())
	}

	plan.items = items

	plan.body, err = bodyBlocks(schedule, block, configBlockIDs(block.Config["body"]))
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// loopItems precomputes the iteration values: a fixed count yields indices, a
// collection (literal or resolved from a {{name}} reference) yields its
// elements.
func loopItems(block *models.Block, execCtx *models.ExecutionContext) ([]any, error) {
	if raw, ok := block.Config["count"]; ok {
		count, ok := asInt(raw)
		if !ok || count < 0 {
			return nil, fmt.Errorf("'count' must be a non-negative number, got %v", raw)
		}

		items := make([]any, count)
		for i := range items {
			items[i] = i
		}

		return items, nil
	}

	raw, ok := block.Config["items"]
	if !ok {
		return nil, fmt.Errorf("loop requires either 'count' or 'items'")
	}

	if expr, ok := raw.(string); ok {
		raw = template.RenderWithContext(expr, execCtx)
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("'items' must resolve to a collection, got %T", raw)
	}

	return items, nil
}

// bodyBlocks resolves configured body block IDs against the schedule, keeping
// schedule order. Nested control flow inside a body is rejected.
func bodyBlocks(schedule *scheduler.Schedule, owner *models.Block, ids []string) ([]*models.Block, error) {
	if len(ids) == 0 {
		return nil, models.NewValidationError(owner.ID, owner.Type, "body must name at least one block")
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	body := make([]*models.Block, 0, len(ids))

	for _, block := range schedule.Order {
		if !wanted[block.ID] {
			continue
		}

		if block.IsControlFlow() {
			return nil, models.NewValidationError(owner.ID, owner.Type,
				fmt.Sprintf("body block %q is a control-flow block; nesting is not supported", block.ID))
		}

		body = append(body, block)
		delete(wanted, block.ID)
	}

	if len(wanted) > 0 {
		for id := range wanted {
			return nil, models.NewValidationError(owner.ID, owner.Type,
				fmt.Sprintf("body references unknown block %q", id))
		}
	}

	return body, nil
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
