package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/channels/gochannel"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func triggeredEvent(workflowID string) events.WorkflowTriggered {
	return events.WorkflowTriggered{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.WorkflowTriggeredEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: workflowID,
		},
		TriggerID:   "nightly",
		TriggerKind: "schedule",
		TriggerData: map[string]any{"timestamp": "2026-08-26T02:00:00Z"},
	}
}

func TestPublishDeliversToRegisteredHandler(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan *events.WorkflowTriggered, 1)

	require.NoError(t, bus.Handle(events.WorkflowTriggeredEvent, func(_ context.Context, event any) error {
		triggered, ok := event.(*events.WorkflowTriggered)
		require.True(t, ok)

		received <- triggered

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", triggeredEvent("wf-1")))

	select {
	case triggered := <-received:
		assert.Equal(t, "wf-1", triggered.WorkflowID)
		assert.Equal(t, "nightly", triggered.TriggerID)
		assert.Equal(t, "schedule", triggered.TriggerKind)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestUnhandledEventTypesAreDropped(t *testing.T) {
	bus := newTestBus(t)
	ctx := context.Background()

	received := make(chan *events.WorkflowTriggered, 2)

	require.NoError(t, bus.Handle(events.WorkflowTriggeredEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowTriggered)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for execution.completed; it must be acked and
	// skipped without blocking the subscription.
	completed := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:         uuid.New().String(),
			Type:       events.ExecutionCompletedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		ExecutionID: "exec-1",
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", completed))
	require.NoError(t, bus.Publish(ctx, "wf-1", triggeredEvent("wf-1")))

	select {
	case triggered := <-received:
		assert.Equal(t, "wf-1", triggered.WorkflowID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription stalled on unhandled event")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
