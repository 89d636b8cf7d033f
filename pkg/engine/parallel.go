package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
)

const (
	// DefaultMaxConcurrency bounds simultaneous parallel branches.
	DefaultMaxConcurrency = 10

	aggregationArray = "array"
	aggregationMerge = "merge"
	aggregationFirst = "first"

	branchIndexVar = "branch_index"
)

// branchOutcome is the join record of one branch, indexed for deterministic
// aggregation regardless of completion order.
type branchOutcome struct {
	index   int
	success bool
	outputs map[string]any
	// final is the last body block's outputs, the branch's aggregation value.
	final map[string]any
	err   string

	blockResults []recordedResult
}

type recordedResult struct {
	block  *models.Block
	result *models.BlockResult
}

// runParallel interprets a parallel block: branches precomputed from config,
// run concurrently under a weighted semaphore, joined in branch order. A
// branch failure (error or panic) never disturbs its siblings.
func (e *Engine) runParallel(ctx context.Context, schedule *scheduler.Schedule, block *models.Block, execCtx *models.ExecutionContext) *models.BlockResult {
	startedAt := time.Now().UTC()

	branches := configBranches(block.Config["branches"])
	if len(branches) == 0 {
		return failedResult(startedAt, time.Since(startedAt),
			models.NewValidationError(block.ID, block.Type, "branches must name at least one block"))
	}

	branchBodies := make([][]*models.Block, len(branches))

	for i, branch := range branches {
		body, err := bodyBlocks(schedule, block, branch)
		if err != nil {
			return failedResult(startedAt, time.Since(startedAt), err)
		}

		branchBodies[i] = body
	}

	maxConcurrency := DefaultMaxConcurrency
	if raw, ok := block.Config["max_concurrency"]; ok {
		if n, ok := asInt(raw); ok && n > 0 {
			maxConcurrency = n
		}
	}

	aggregation := aggregationArray
	if v, ok := block.Config["aggregation"].(string); ok && v != "" {
		aggregation = v
	}

	switch aggregation {
	case aggregationArray, aggregationMerge, aggregationFirst:
	default:
		return failedResult(startedAt, time.Since(startedAt),
			models.NewValidationError(block.ID, block.Type,
				fmt.Sprintf("unknown aggregation %q", aggregation)))
	}

	baseline := execCtx.SnapshotVariables()
	outcomes := make([]branchOutcome, len(branchBodies))

	sem := semaphore.NewWeighted(int64(maxConcurrency))

	var wg sync.WaitGroup

	for i, body := range branchBodies {
		wg.Add(1)

		go func(index int, body []*models.Block) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[index] = branchOutcome{index: index, err: err.Error()}

				return
			}
			defer sem.Release(1)

			outcomes[index] = e.runBranch(ctx, execCtx, baseline, index, body)
		}(i, body)
	}

	wg.Wait()

	// Join in branch order so records and aggregation are deterministic.
	succeeded := 0
	failed := 0
	branchResults := make([]any, len(outcomes))

	for _, outcome := range outcomes {
		for _, recorded := range outcome.blockResults {
			execCtx.RecordBlockResult(recorded.block, recorded.result)
		}

		if outcome.success {
			succeeded++
			branchResults[outcome.index] = map[string]any{
				"branch":  outcome.index,
				"success": true,
				"outputs": outcome.outputs,
			}
		} else {
			failed++
			branchResults[outcome.index] = map[string]any{
				"branch":  outcome.index,
				"success": false,
				"error":   outcome.err,
			}
		}
	}

	execCtx.ParallelTracker[block.ID] = len(outcomes)

	outputs := map[string]any{
		"count":     len(outcomes),
		"succeeded": succeeded,
		"failed":    failed,
		"branches":  branchResults,
		"results":   aggregate(aggregation, outcomes),
	}

	return &models.BlockResult{
		Success:   true,
		Outputs:   outputs,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}
}

// runBranch executes one branch against a private copy of the execution
// context, so concurrent branches never share mutable state. Panics are
// contained to the branch.
func (e *Engine) runBranch(ctx context.Context, execCtx *models.ExecutionContext, baseline map[string]any, index int, body []*models.Block) (outcome branchOutcome) {
	outcome.index = index

	defer func() {
		if r := recover(); r != nil {
			outcome.success = false
			outcome.err = fmt.Sprintf("branch panic: %v", r)
		}
	}()

	branchCtx := branchContext(execCtx, baseline, index)
	outputs := make(map[string]any, len(body))

	for _, block := range body {
		result := e.runRegistryBlock(ctx, block, branchCtx)
		outcome.blockResults = append(outcome.blockResults, recordedResult{block: block, result: result})

		if !result.Success {
			outcome.err = result.Error

			return outcome
		}

		outputs[block.ID] = result.Outputs
		outcome.final = result.Outputs
	}

	outcome.success = true
	outcome.outputs = outputs

	return outcome
}

// branchContext builds a branch-private view of the run: same identity,
// isolated variables and records.
func branchContext(execCtx *models.ExecutionContext, baseline map[string]any, index int) *models.ExecutionContext {
	variables := make(map[string]any, len(baseline)+1)
	for k, v := range baseline {
		variables[k] = v
	}

	variables[branchIndexVar] = index

	return &models.ExecutionContext{
		ExecutionID:     execCtx.ExecutionID,
		WorkflowID:      execCtx.WorkflowID,
		UserID:          execCtx.UserID,
		Trigger:         execCtx.Trigger,
		BlockStates:     make(map[string]*models.BlockState),
		Logs:            make([]models.BlockLog, 0),
		Variables:       variables,
		Environment:     execCtx.Environment,
		LoopIterations:  make(map[string]int),
		ParallelTracker: make(map[string]int),
		Decisions:       make(map[string]string),
		Status:          execCtx.Status,
		StartedAt:       execCtx.StartedAt,
	}
}

// aggregate reduces joined branch outcomes per the configured mode: array
// keeps branch order, merge is shallow with higher branch indexes winning,
// first returns the lowest-indexed successful branch.
func aggregate(mode string, outcomes []branchOutcome) any {
	switch mode {
	case aggregationMerge:
		merged := make(map[string]any)

		for _, outcome := range outcomes {
			if !outcome.success {
				continue
			}

			for k, v := range outcome.final {
				merged[k] = v
			}
		}

		return merged
	case aggregationFirst:
		for _, outcome := range outcomes {
			if outcome.success {
				return outcome.final
			}
		}

		return nil
	default:
		results := make([]any, len(outcomes))
		for _, outcome := range outcomes {
			if outcome.success {
				results[outcome.index] = outcome.final
			}
		}

		return results
	}
}
