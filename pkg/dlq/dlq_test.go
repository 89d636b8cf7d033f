package dlq_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/dlq"
	"github.com/flowgrid/flowgrid/pkg/store"
	"github.com/flowgrid/flowgrid/pkg/testutil"
)

func TestEnqueueAndPopOldestFirst(t *testing.T) {
	queue := dlq.NewQueue(store.NewMemoryKV(), testutil.Logger())
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, dlq.Entry{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		Error:       "block fetch failed",
	}))
	require.NoError(t, queue.Enqueue(ctx, dlq.Entry{
		ExecutionID: "exec-2",
		WorkflowID:  "wf-1",
		Error:       "timeout",
	}))

	size, err := queue.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, size)

	entry, err := queue.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "exec-1", entry.ExecutionID)

	entry, err = queue.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "exec-2", entry.ExecutionID)

	size, err = queue.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, size)
}

func TestPopEmptyQueue(t *testing.T) {
	queue := dlq.NewQueue(store.NewMemoryKV(), testutil.Logger())

	entry, err := queue.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEnqueueStampsFailedAt(t *testing.T) {
	queue := dlq.NewQueue(store.NewMemoryKV(), testutil.Logger())
	ctx := context.Background()

	before := time.Now().UTC()
	require.NoError(t, queue.Enqueue(ctx, dlq.Entry{ExecutionID: "exec-1", Error: "boom"}))

	entry, err := queue.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.FailedAt.Before(before))
}

func TestEntriesDoesNotConsume(t *testing.T) {
	queue := dlq.NewQueue(store.NewMemoryKV(), testutil.Logger())
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, dlq.Entry{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		InputData:   map[string]any{"order": 7},
		Error:       "validation failed",
	}))

	entries, err := queue.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "wf-1", entries[0].WorkflowID)
	assert.EqualValues(t, 7, entries[0].InputData["order"])

	size, err := queue.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}
