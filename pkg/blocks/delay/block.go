// Package delay provides the built-in delay block.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
)

const maxDelay = 5 * time.Minute

// DelayBlock pauses the walk for a configured duration. Cancellation cuts the
// wait short and fails the block with the context's error.
type DelayBlock struct {
	duration time.Duration
}

// NewDelayBlock creates a delay block from a duration in milliseconds.
func NewDelayBlock(config map[string]any) (*DelayBlock, error) {
	raw, ok := config["duration_ms"]
	if !ok {
		return nil, fmt.Errorf("missing required field 'duration_ms'")
	}

	ms, ok := asMilliseconds(raw)
	if !ok || ms < 0 {
		return nil, fmt.Errorf("'duration_ms' must be a non-negative number, got %v", raw)
	}

	duration := time.Duration(ms) * time.Millisecond
	if duration > maxDelay {
		return nil, fmt.Errorf("'duration_ms' exceeds the maximum of %s", maxDelay)
	}

	return &DelayBlock{duration: duration}, nil
}

// Execute waits for the configured duration.
func (b *DelayBlock) Execute(ctx context.Context, inputs map[string]any, execCtx *models.ExecutionContext) (map[string]any, error) {
	timer := time.NewTimer(b.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: delay interrupted: %v", models.ErrBlockExecution, ctx.Err())
	case <-timer.C:
	}

	return map[string]any{
		"delayed_ms": b.duration.Milliseconds(),
	}, nil
}

func asMilliseconds(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
