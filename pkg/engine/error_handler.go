package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/template"
)

// blockFunc is one block invocation with resolved inputs.
type blockFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// executeWithErrorHandling is the uniform per-block contract: it resolves
// input templates, validates them, times the call under the per-block budget,
// retries recoverable failures with a fixed delay, and always returns a
// structured BlockResult. No raw error ever crosses into the walk loop.
func (e *Engine) executeWithErrorHandling(ctx context.Context, block *models.Block, execCtx *models.ExecutionContext, fn blockFunc) *models.BlockResult {
	startedAt := time.Now().UTC()

	inputs := template.RenderAllWithContext(block.Inputs, execCtx)

	if err := e.validateInputs(block, inputs); err != nil {
		return failedResult(startedAt, time.Since(startedAt), err)
	}

	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.InfoContext(ctx, "Retrying block",
				"block_id", block.ID, "attempt", attempt, "max_retries", e.maxRetries)

			select {
			case <-ctx.Done():
				return failedResult(startedAt, time.Since(startedAt),
					fmt.Errorf("%w: %v", models.ErrExecutionTimeout, ctx.Err()))
			case <-time.After(e.retryDelay):
			}
		}

		outputs, err := e.invoke(ctx, fn, inputs)
		if err == nil {
			return &models.BlockResult{
				Success:   true,
				Outputs:   outputs,
				StartedAt: startedAt,
				Duration:  time.Since(startedAt),
			}
		}

		lastErr = err

		if !recoverable(err) {
			break
		}
	}

	return failedResult(startedAt, time.Since(startedAt), lastErr)
}

// invoke runs one attempt under the per-block budget. The budget is enforced
// even against blocks that ignore their context; an abandoned goroutine can
// outlive the attempt, its result is discarded.
func (e *Engine) invoke(ctx context.Context, fn blockFunc, inputs map[string]any) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.blockTimeout)
	defer cancel()

	type outcome struct {
		outputs map[string]any
		err     error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", models.ErrBlockExecution, r)}
			}
		}()

		outputs, err := fn(attemptCtx, inputs)
		done <- outcome{outputs: outputs, err: err}
	}()

	select {
	case <-attemptCtx.Done():
		return nil, fmt.Errorf("%w: block exceeded its %s budget", models.ErrExecutionTimeout, e.blockTimeout)
	case result := <-done:
		return result.outputs, result.err
	}
}

func (e *Engine) validateInputs(block *models.Block, inputs map[string]any) error {
	if block.InputSchema != nil {
		if err := registry.ValidateData(inputs, block.InputSchema); err != nil {
			return models.NewValidationError(block.ID, block.Type, err.Error())
		}
	}

	if !block.IsControlFlow() && e.registry.IsBlockRegistered(block.Type) {
		return e.registry.ValidateInputs(block.ID, block.Type, inputs)
	}

	return nil
}

// recoverablePatterns identify the transient failure classes worth a retry:
// timeouts, connection trouble, and rate limiting.
var recoverablePatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"connection closed",
	"broken pipe",
	"no such host",
	"unreachable",
	"rate limit",
	"too many requests",
	"throttled",
	"temporarily unavailable",
}

// recoverable reports whether a failure qualifies for retry. Validation
// errors never do. A per-block budget expiry does; the whole-run deadline is
// enforced separately by the retry loop's own context check. Everything else
// is retried only when its message matches a transient pattern.
func recoverable(err error) bool {
	if err == nil || errors.Is(err, models.ErrValidation) {
		return false
	}

	if errors.Is(err, models.ErrExecutionTimeout) {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, pattern := range recoverablePatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}

	return false
}

func failedResult(startedAt time.Time, duration time.Duration, err error) *models.BlockResult {
	return &models.BlockResult{
		Success:   false,
		Error:     err.Error(),
		ErrorType: models.ClassifyError(err),
		StartedAt: startedAt,
		Duration:  duration,
	}
}
