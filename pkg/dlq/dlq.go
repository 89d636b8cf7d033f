// Package dlq collects the inputs of executions that failed after all
// retries, so operators can inspect and replay them. Entries live on a list
// in the shared store; enqueueing is best-effort and never masks the failure
// that brought the execution down.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/store"
)

const queueKey = "flowgrid:dlq:executions"

// Entry captures everything needed to replay a failed execution.
type Entry struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	InputData   map[string]any `json:"input_data,omitempty"`
	Error       string         `json:"error"`
	FailedAt    time.Time      `json:"failed_at"`
}

// Queue is a dead letter queue for failed executions.
type Queue struct {
	kv     store.KV
	logger *slog.Logger
}

// NewQueue creates a dead letter queue. A nil kv degrades to process memory.
func NewQueue(kv store.KV, logger *slog.Logger) *Queue {
	if kv == nil {
		kv = store.NewMemoryKV()
	}

	return &Queue{
		kv:     kv,
		logger: logger.With("module", "dlq"),
	}
}

// Enqueue appends a failed execution to the queue. Errors are returned so
// callers can log them, but callers must keep reporting the original failure.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) error {
	if entry.FailedAt.IsZero() {
		entry.FailedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode dlq entry: %w", err)
	}

	if err := q.kv.ListPush(ctx, queueKey, string(raw)); err != nil {
		return fmt.Errorf("dlq enqueue %s: %w", entry.ExecutionID, err)
	}

	q.logger.WarnContext(ctx, "Execution sent to dead letter queue",
		"execution_id", entry.ExecutionID, "workflow_id", entry.WorkflowID, "error", entry.Error)

	return nil
}

// Pop removes and returns the oldest entry, or nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (*Entry, error) {
	raw, found, err := q.kv.ListPop(ctx, queueKey)
	if err != nil {
		return nil, fmt.Errorf("dlq pop: %w", err)
	}

	if !found {
		return nil, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("decode dlq entry: %w", err)
	}

	return &entry, nil
}

// Size returns the number of queued entries.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	n, err := q.kv.ListLen(ctx, queueKey)
	if err != nil {
		return 0, fmt.Errorf("dlq size: %w", err)
	}

	return n, nil
}

// Entries returns all queued entries without removing them.
func (q *Queue) Entries(ctx context.Context) ([]Entry, error) {
	raws, err := q.kv.ListAll(ctx, queueKey)
	if err != nil {
		return nil, fmt.Errorf("dlq entries: %w", err)
	}

	entries := make([]Entry, 0, len(raws))

	for _, raw := range raws {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode dlq entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
