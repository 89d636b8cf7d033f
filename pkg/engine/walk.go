package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/otelhelper"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/template"
)

// Condition block output and config keys.
const (
	conditionPathKey    = "path"
	conditionDefaultKey = "default_path"
)

// walk runs the scheduled blocks with an activation set: start blocks are
// active, completed blocks activate their successors, condition blocks
// activate only the branch matching their evaluated path. Inactive blocks
// are skipped and keep their not-executed state.
func (e *Engine) walk(ctx context.Context, workflow *models.Workflow, execCtx *models.ExecutionContext) (map[string]any, error) {
	schedule, err := scheduler.Plan(workflow)
	if err != nil {
		return nil, err
	}

	// Blocks referenced as loop or parallel bodies run inside their owner,
	// never from the top-level walk.
	body := bodyBlockIDs(schedule)

	active := make(map[string]bool, len(schedule.Order))
	for _, id := range schedule.StartBlockIDs {
		if !body[id] {
			active[id] = true
		}
	}

	// activated marks blocks that passed control onward; executed blocks
	// that never did are the run's terminal outputs.
	activatedSuccessor := make(map[string]bool, len(schedule.Order))

	for _, block := range schedule.Order {
		if err := e.waitIfPausedOrCancelled(ctx, execCtx.ExecutionID); err != nil {
			return nil, err
		}

		if !active[block.ID] || body[block.ID] {
			continue
		}

		result := e.runBlock(ctx, schedule, block, execCtx)
		execCtx.RecordBlockResult(block, result)
		e.recordBlockState(ctx, execCtx.ExecutionID, block, result)
		e.publishBlockEvent(ctx, execCtx, block, result)

		if !result.Success {
			// Fail fast: downstream blocks never run.
			return nil, blockFailure(block, result)
		}

		targets := e.routeSuccessors(schedule, block, result, execCtx)
		if len(targets) > 0 {
			activatedSuccessor[block.ID] = true
		}

		for _, target := range targets {
			active[target] = true
		}
	}

	return terminalOutputs(execCtx, active, activatedSuccessor, body), nil
}

// runBlock dispatches one active block: control-flow types are interpreted by
// the engine, everything else goes through the registry behind the error
// handler wrapper.
func (e *Engine) runBlock(ctx context.Context, schedule *scheduler.Schedule, block *models.Block, execCtx *models.ExecutionContext) *models.BlockResult {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.block",
		attribute.String(otelhelper.BlockIDKey, block.ID),
		attribute.String(otelhelper.BlockTypeKey, block.Type),
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ExecutionID),
	)
	defer span.End()

	switch block.Type {
	case models.BlockTypeCondition:
		return e.executeWithErrorHandling(ctx, block, execCtx, func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return e.evaluateCondition(block, execCtx)
		})
	case models.BlockTypeLoop:
		return e.runLoop(ctx, schedule, block, execCtx)
	case models.BlockTypeParallel:
		return e.runParallel(ctx, schedule, block, execCtx)
	default:
		return e.runRegistryBlock(ctx, block, execCtx)
	}
}

func (e *Engine) runRegistryBlock(ctx context.Context, block *models.Block, execCtx *models.ExecutionContext) *models.BlockResult {
	impl, err := e.registry.CreateBlock(block.ID, block.Type, block.Config)
	if err != nil {
		return failedResult(time.Now().UTC(), 0, err)
	}

	// Blocks marked exclusive hold a cross-process lock while they run, so
	// two executions of the same workflow never invoke the block at once.
	// Loop and parallel bodies pass through here too.
	if exclusive, _ := block.Config["exclusive"].(bool); exclusive {
		blockLock, err := e.locks.Acquire(ctx, lock.BlockLockName(execCtx.WorkflowID, block.ID))
		if err != nil {
			return failedResult(time.Now().UTC(), 0, err)
		}

		defer func() {
			if releaseErr := blockLock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
				e.logger.WarnContext(ctx, "Failed to release block lock",
					"block_id", block.ID, "error", releaseErr)
			}
		}()
	}

	return e.executeWithErrorHandling(ctx, block, execCtx, func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return impl.Execute(ctx, inputs, execCtx)
	})
}

// evaluateCondition renders the configured condition and reduces it to a path
// label routed through edge source handles.
func (e *Engine) evaluateCondition(block *models.Block, execCtx *models.ExecutionContext) (map[string]any, error) {
	expression, ok := block.Config["condition"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing required field 'condition'", models.ErrValidation)
	}

	value := template.RenderWithContext(expression, execCtx)
	path := "false"

	if truthy(value) {
		path = "true"
	}

	return map[string]any{
		conditionPathKey:  path,
		"evaluated_value": value,
	}, nil
}

// routeSuccessors returns the block IDs activated by a completed block. A
// condition activates only the first edge whose handle matches the chosen
// path (falling back to the configured default path); no match is a silent
// dead end. Every other block activates all outgoing targets.
func (e *Engine) routeSuccessors(schedule *scheduler.Schedule, block *models.Block, result *models.BlockResult, execCtx *models.ExecutionContext) []string {
	edges := schedule.Successors[block.ID]

	if block.Type != models.BlockTypeCondition {
		targets := make([]string, 0, len(edges))
		for _, edge := range edges {
			targets = append(targets, edge.TargetBlockID)
		}

		return targets
	}

	path, _ := result.Outputs[conditionPathKey].(string)
	execCtx.Decisions[block.ID] = path

	if target, ok := matchHandle(edges, path); ok {
		return []string{target}
	}

	if fallback, ok := block.Config[conditionDefaultKey].(string); ok {
		if target, ok := matchHandle(edges, fallback); ok {
			execCtx.Decisions[block.ID] = fallback

			return []string{target}
		}
	}

	// No matching branch: the walk continues elsewhere, nothing downstream
	// of this condition runs.
	return nil
}

func matchHandle(edges []*models.Edge, handle string) (string, bool) {
	if handle == "" {
		return "", false
	}

	for _, edge := range edges {
		if edge.SourceHandle == handle {
			return edge.TargetBlockID, true
		}
	}

	return "", false
}

// waitIfPausedOrCancelled consults the shared state document before each
// block. PAUSED parks the walk until resumed; CANCELLED and other terminal
// states stop it.
func (e *Engine) waitIfPausedOrCancelled(ctx context.Context, executionID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", models.ErrExecutionTimeout, err)
		}

		doc, err := e.states.Get(ctx, executionID)
		if err != nil {
			return err
		}

		switch doc.Status {
		case models.ExecutionStatusRunning:
			return nil
		case models.ExecutionStatusPaused, models.ExecutionStatusWaitingApproval:
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", models.ErrExecutionTimeout, ctx.Err())
			case <-time.After(statusPollInterval):
			}
		case models.ExecutionStatusCancelled:
			return errRunCancelled
		default:
			return fmt.Errorf("execution %s is %s, cannot continue", executionID, doc.Status)
		}
	}
}

func (e *Engine) recordBlockState(ctx context.Context, executionID string, block *models.Block, result *models.BlockResult) {
	status := "success"
	if !result.Success {
		status = "error"
	}

	if err := e.states.RecordBlockResult(ctx, executionID, block.ID, result.Outputs, status); err != nil {
		e.logger.WarnContext(ctx, "Failed to mirror block result",
			"execution_id", executionID, "block_id", block.ID, "error", err)
	}
}

func (e *Engine) publishBlockEvent(ctx context.Context, execCtx *models.ExecutionContext, block *models.Block, result *models.BlockResult) {
	if result.Success {
		e.publish(ctx, execCtx.ExecutionID, events.BlockFinished{
			BaseEvent:   e.baseEvent(events.BlockFinishedEvent, execCtx.WorkflowID),
			ExecutionID: execCtx.ExecutionID,
			BlockID:     block.ID,
			BlockType:   block.Type,
			Outputs:     result.Outputs,
			Duration:    result.Duration,
		})

		return
	}

	e.publish(ctx, execCtx.ExecutionID, events.BlockFailed{
		BaseEvent:   e.baseEvent(events.BlockFailedEvent, execCtx.WorkflowID),
		ExecutionID: execCtx.ExecutionID,
		BlockID:     block.ID,
		BlockType:   block.Type,
		Error:       result.Error,
		ErrorType:   result.ErrorType,
		Duration:    result.Duration,
	})
}

// terminalOutputs collects the outputs of executed blocks that activated no
// successor; they are the run's result.
func terminalOutputs(execCtx *models.ExecutionContext, active, activatedSuccessor, body map[string]bool) map[string]any {
	output := make(map[string]any)

	for blockID, state := range execCtx.BlockStates {
		if !active[blockID] || body[blockID] || !state.Executed || activatedSuccessor[blockID] {
			continue
		}

		output[blockID] = state.Outputs
	}

	return output
}

// bodyBlockIDs collects every block referenced as a loop body or parallel
// branch, so the top-level walk leaves them to their owning block.
func bodyBlockIDs(schedule *scheduler.Schedule) map[string]bool {
	body := make(map[string]bool)

	for _, block := range schedule.Order {
		if block.Type != models.BlockTypeLoop && block.Type != models.BlockTypeParallel {
			continue
		}

		for _, id := range configBlockIDs(block.Config["body"]) {
			body[id] = true
		}

		for _, branch := range configBranches(block.Config["branches"]) {
			for _, id := range branch {
				body[id] = true
			}
		}
	}

	return body
}

// configBlockIDs reads a []string out of loosely typed JSON config.
func configBlockIDs(raw any) []string {
	switch typed := raw.(type) {
	case []string:
		return typed
	case []any:
		ids := make([]string, 0, len(typed))
		for _, item := range typed {
			if id, ok := item.(string); ok {
				ids = append(ids, id)
			}
		}

		return ids
	default:
		return nil
	}
}

// configBranches reads branch block-id lists out of loosely typed JSON
// config. A bare string branch is a single-block branch.
func configBranches(raw any) [][]string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	branches := make([][]string, 0, len(items))

	for _, item := range items {
		switch typed := item.(type) {
		case string:
			branches = append(branches, []string{typed})
		case []any, []string:
			branches = append(branches, configBlockIDs(typed))
		}
	}

	return branches
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}

		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case nil:
		return false
	default:
		return false
	}
}

func blockFailure(block *models.Block, result *models.BlockResult) error {
	if result.ErrorType == models.ErrorTypeValidation {
		return models.NewValidationError(block.ID, block.Type, result.Error)
	}

	if result.ErrorType == models.ErrorTypeTimeout {
		return &models.BlockError{
			BlockID:   block.ID,
			BlockType: block.Type,
			Err:       fmt.Errorf("%w: %s", models.ErrExecutionTimeout, result.Error),
		}
	}

	return &models.BlockError{
		BlockID:   block.ID,
		BlockType: block.Type,
		Err:       fmt.Errorf("%w: %s", models.ErrBlockExecution, result.Error),
	}
}
