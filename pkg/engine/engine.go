// Package engine runs workflow executions: it schedules the block graph,
// walks it with condition routing, interprets loop and parallel blocks, and
// coordinates the distributed managers (lock, state, idempotency, dead letter
// queue) around each run.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgrid/flowgrid/pkg/dlq"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/idempotency"
	"github.com/flowgrid/flowgrid/pkg/lock"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/otelhelper"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/state"
	"github.com/flowgrid/flowgrid/pkg/store"
)

const (
	// DefaultBlockTimeout bounds a single block invocation.
	DefaultBlockTimeout = 300 * time.Second

	// DefaultRunTimeout bounds the whole execution.
	DefaultRunTimeout = 1800 * time.Second

	// DefaultMaxRetries is how many times a recoverable block failure is
	// retried after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the fixed wait between retry attempts.
	DefaultRetryDelay = 2 * time.Second

	// statusPollInterval is how often a paused run re-reads the state
	// document waiting to be resumed or cancelled.
	statusPollInterval = 100 * time.Millisecond
)

var errRunCancelled = errors.New("execution cancelled")

// ExecuteRequest asks the engine to run one workflow.
type ExecuteRequest struct {
	WorkflowID     string
	UserID         string
	Trigger        models.TriggerKind
	Input          map[string]any
	IdempotencyKey string
}

// ExecuteResult is the uniform outcome of an execution attempt.
type ExecuteResult struct {
	Success     bool                   `json:"success"`
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	Output      map[string]any         `json:"output,omitempty"`
	Error       *models.ErrorInfo      `json:"error,omitempty"`

	// Duplicate marks a result served from the idempotency store instead of
	// a fresh run.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Engine coordinates workflow executions.
type Engine struct {
	workflows   persistence.WorkflowRepository
	executions  persistence.ExecutionRepository
	registry    *registry.Registry
	locks       *lock.Manager
	states      *state.Manager
	idempotency *idempotency.Manager
	deadLetters *dlq.Queue
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	workerID    string

	blockTimeout time.Duration
	runTimeout   time.Duration
	maxRetries   int
	retryDelay   time.Duration
}

// Option customizes engine construction.
type Option func(*Engine)

// WithBlockTimeout overrides the per-block invocation budget.
func WithBlockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.blockTimeout = d }
}

// WithRunTimeout overrides the whole-run budget.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) { e.runTimeout = d }
}

// WithRetry overrides the recoverable-failure retry policy.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(e *Engine) {
		e.maxRetries = maxRetries
		e.retryDelay = delay
	}
}

// WithEventPublisher attaches a lifecycle event publisher.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

// WithExecutionRepository persists finished execution contexts.
func WithExecutionRepository(repo persistence.ExecutionRepository) Option {
	return func(e *Engine) { e.executions = repo }
}

// WithWorkerID tags spans and events with the owning worker.
func WithWorkerID(workerID string) Option {
	return func(e *Engine) { e.workerID = workerID }
}

// WithLockManager replaces the default lock manager, for custom TTLs or
// blocking timeouts.
func WithLockManager(manager *lock.Manager) Option {
	return func(e *Engine) { e.locks = manager }
}

// NewEngine builds an engine on the shared store. A nil kv degrades every
// coordination manager to process-local semantics.
func NewEngine(workflows persistence.WorkflowRepository, reg *registry.Registry, kv store.KV, logger *slog.Logger, opts ...Option) *Engine {
	if kv == nil {
		kv = store.NewMemoryKV()
	}

	engine := &Engine{
		workflows:    workflows,
		registry:     reg,
		locks:        lock.NewManager(kv, logger),
		states:       state.NewManager(kv, logger),
		idempotency:  idempotency.NewManager(kv, logger),
		deadLetters:  dlq.NewQueue(kv, logger),
		logger:       logger.With("module", "engine"),
		tracer:       otel.Tracer("flowgrid/engine"),
		blockTimeout: DefaultBlockTimeout,
		runTimeout:   DefaultRunTimeout,
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// States exposes the state manager for control surfaces (API, worker).
func (e *Engine) States() *state.Manager {
	return e.states
}

// DeadLetters exposes the dead letter queue for control surfaces.
func (e *Engine) DeadLetters() *dlq.Queue {
	return e.deadLetters
}

// Execute runs one workflow end to end and returns a uniform result. Errors
// are returned only for pre-run failures (bad request, lock contention,
// unknown workflow); block failures end in a result with Success=false.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	if req.WorkflowID == "" {
		return nil, fmt.Errorf("%w: workflow id is required", models.ErrValidation)
	}

	if req.Trigger == "" {
		req.Trigger = models.TriggerKindManual
	}

	executionID := uuid.New().String()
	logger := e.logger.With("workflow_id", req.WorkflowID, "execution_id", executionID)

	// Idempotent triggers: a repeated key gets the stored outcome, never a
	// second run.
	if req.IdempotencyKey != "" {
		record, duplicate, err := e.idempotency.Begin(ctx, req.IdempotencyKey, executionID)
		if err != nil {
			return nil, err
		}

		if duplicate {
			logger.InfoContext(ctx, "Duplicate trigger served from idempotency store",
				"idempotency_key", req.IdempotencyKey)

			return duplicateResult(record), nil
		}
	}

	// A failure before the run starts must not strand the in-flight marker:
	// the key is abandoned so the caller's retry begins fresh.
	preRunFailure := func(err error) (*ExecuteResult, error) {
		if req.IdempotencyKey != "" {
			if abandonErr := e.idempotency.Abandon(context.WithoutCancel(ctx), req.IdempotencyKey); abandonErr != nil {
				logger.WarnContext(ctx, "Failed to abandon idempotency record",
					"idempotency_key", req.IdempotencyKey, "error", abandonErr)
			}
		}

		return nil, err
	}

	// One run per workflow at a time across the fleet.
	executionLock, err := e.locks.Acquire(ctx, lock.ExecutionLockName(req.WorkflowID))
	if err != nil {
		return preRunFailure(err)
	}
	defer func() {
		if releaseErr := executionLock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logger.WarnContext(ctx, "Failed to release execution lock", "error", releaseErr)
		}
	}()

	workflow, err := e.workflows.WorkflowByID(ctx, req.WorkflowID)
	if err != nil {
		return preRunFailure(err)
	}

	if workflow.Status != models.WorkflowStatusPublished {
		return preRunFailure(persistence.NewWorkflowError("Execute", req.WorkflowID, persistence.ErrWorkflowNotPublished))
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.TriggerTypeKey, string(req.Trigger)),
	)
	defer span.End()

	result := e.run(ctx, logger, workflow, executionID, req)

	if req.IdempotencyKey != "" {
		status := idempotency.StatusCompleted
		if !result.Success {
			status = idempotency.StatusFailed
		}

		if err := e.idempotency.Complete(ctx, req.IdempotencyKey, status, result); err != nil {
			logger.WarnContext(ctx, "Failed to complete idempotency record", "error", err)
		}
	}

	return result, nil
}

// run owns everything between state creation and the terminal transition.
func (e *Engine) run(ctx context.Context, logger *slog.Logger, workflow *models.Workflow, executionID string, req ExecuteRequest) *ExecuteResult {
	startedAt := time.Now().UTC()

	if _, err := e.states.Create(ctx, executionID, workflow.ID, req.Input); err != nil {
		return e.failResult(ctx, logger, nil, executionID, req, err, startedAt)
	}

	if _, err := e.states.Transition(ctx, executionID, models.ExecutionStatusRunning, "execution started"); err != nil {
		return e.failResult(ctx, logger, nil, executionID, req, err, startedAt)
	}

	execCtx := models.NewExecutionContext(executionID, workflow, req.UserID, req.Trigger)
	for key, value := range req.Input {
		execCtx.Variables[key] = value
	}

	e.publish(ctx, executionID, events.ExecutionStarted{
		BaseEvent:    e.baseEvent(events.ExecutionStartedEvent, workflow.ID),
		ExecutionID:  executionID,
		WorkflowName: workflow.Name,
		TriggerKind:  string(req.Trigger),
		Variables:    execCtx.Variables,
	})

	runCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	output, runErr := e.walk(runCtx, workflow, execCtx)

	duration := time.Since(startedAt)

	switch {
	case runErr == nil:
		return e.completeResult(ctx, logger, execCtx, executionID, workflow.ID, output, duration)
	case errors.Is(runErr, errRunCancelled):
		return e.cancelledResult(ctx, logger, execCtx, executionID, workflow.ID)
	case errors.Is(runErr, models.ErrExecutionTimeout) && runCtx.Err() != nil:
		return e.timeoutResult(ctx, logger, execCtx, executionID, workflow.ID, runErr, duration)
	default:
		return e.failResult(ctx, logger, execCtx, executionID, req, runErr, startedAt)
	}
}

func (e *Engine) completeResult(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, executionID, workflowID string, output map[string]any, duration time.Duration) *ExecuteResult {
	now := time.Now().UTC()
	execCtx.Status = models.ExecutionStatusCompleted
	execCtx.CompletedAt = &now

	if _, err := e.states.Transition(ctx, executionID, models.ExecutionStatusCompleted, "all blocks finished"); err != nil {
		logger.WarnContext(ctx, "Failed to record completion transition", "error", err)
	}

	if _, err := e.states.Update(ctx, executionID, func(doc *models.ExecutionState) {
		doc.OutputData = output
	}); err != nil {
		logger.WarnContext(ctx, "Failed to record execution output", "error", err)
	}

	e.saveExecution(ctx, logger, execCtx)

	e.publish(ctx, executionID, events.ExecutionCompleted{
		BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent, workflowID),
		ExecutionID: executionID,
		Output:      output,
		Duration:    duration,
	})

	logger.InfoContext(ctx, "Execution completed", "duration", duration)

	return &ExecuteResult{
		Success:     true,
		ExecutionID: executionID,
		Status:      models.ExecutionStatusCompleted,
		Output:      output,
	}
}

func (e *Engine) failResult(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, executionID string, req ExecuteRequest, runErr error, startedAt time.Time) *ExecuteResult {
	now := time.Now().UTC()
	if execCtx != nil {
		execCtx.Status = models.ExecutionStatusFailed
		execCtx.CompletedAt = &now
	}

	if _, err := e.states.Transition(ctx, executionID, models.ExecutionStatusFailed, runErr.Error()); err != nil {
		logger.WarnContext(ctx, "Failed to record failure transition", "error", err)
	}

	// The dead letter queue keeps the failed input replayable. Its own
	// failure is logged, never surfaced over the original error.
	if err := e.deadLetters.Enqueue(ctx, dlq.Entry{
		ExecutionID: executionID,
		WorkflowID:  req.WorkflowID,
		InputData:   req.Input,
		Error:       runErr.Error(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to enqueue dead letter", "error", err)
	}

	e.saveExecution(ctx, logger, execCtx)

	e.publish(ctx, executionID, events.ExecutionFailed{
		BaseEvent:   e.baseEvent(events.ExecutionFailedEvent, req.WorkflowID),
		ExecutionID: executionID,
		Error:       models.NewErrorInfo(runErr),
		Duration:    time.Since(startedAt),
	})

	logger.ErrorContext(ctx, "Execution failed", "error", runErr)

	return &ExecuteResult{
		ExecutionID: executionID,
		Status:      models.ExecutionStatusFailed,
		Error:       models.NewErrorInfo(runErr),
	}
}

func (e *Engine) timeoutResult(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, executionID, workflowID string, runErr error, duration time.Duration) *ExecuteResult {
	now := time.Now().UTC()
	execCtx.Status = models.ExecutionStatusTimeout
	execCtx.CompletedAt = &now

	if _, err := e.states.Transition(ctx, executionID, models.ExecutionStatusTimeout, "run budget expired"); err != nil {
		logger.WarnContext(ctx, "Failed to record timeout transition", "error", err)
	}

	e.saveExecution(ctx, logger, execCtx)

	e.publish(ctx, executionID, events.ExecutionTimeout{
		BaseEvent:   e.baseEvent(events.ExecutionTimeoutEvent, workflowID),
		ExecutionID: executionID,
		Duration:    duration,
	})

	logger.ErrorContext(ctx, "Execution timed out", "duration", duration)

	return &ExecuteResult{
		ExecutionID: executionID,
		Status:      models.ExecutionStatusTimeout,
		Error:       models.NewErrorInfo(runErr),
	}
}

func (e *Engine) cancelledResult(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext, executionID, workflowID string) *ExecuteResult {
	now := time.Now().UTC()
	execCtx.Status = models.ExecutionStatusCancelled
	execCtx.CompletedAt = &now

	e.saveExecution(ctx, logger, execCtx)

	e.publish(ctx, executionID, events.ExecutionCancelled{
		BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, workflowID),
		ExecutionID: executionID,
	})

	logger.InfoContext(ctx, "Execution cancelled")

	return &ExecuteResult{
		ExecutionID: executionID,
		Status:      models.ExecutionStatusCancelled,
	}
}

// Pause asks a running execution to stop before its next block. A checkpoint
// is saved so the run can later resume from it.
func (e *Engine) Pause(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	doc, err := e.states.Transition(ctx, executionID, models.ExecutionStatusPaused, "pause requested")
	if err != nil {
		return nil, err
	}

	checkpoint, err := e.states.SaveCheckpoint(ctx, executionID, "pause-"+time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}

	e.publish(ctx, executionID, events.ExecutionPaused{
		BaseEvent:    e.baseEvent(events.ExecutionPausedEvent, doc.WorkflowID),
		ExecutionID:  executionID,
		CheckpointID: checkpoint.ID,
	})

	return e.states.Get(ctx, executionID)
}

// Resume transitions a paused execution back to RUNNING. A non-empty
// checkpointID restores that checkpoint first.
func (e *Engine) Resume(ctx context.Context, executionID, checkpointID string) (*models.ExecutionState, error) {
	if checkpointID != "" {
		if _, err := e.states.RestoreCheckpoint(ctx, executionID, checkpointID); err != nil {
			return nil, err
		}
	}

	doc, err := e.states.Transition(ctx, executionID, models.ExecutionStatusRunning, "resume requested")
	if err != nil {
		return nil, err
	}

	e.publish(ctx, executionID, events.ExecutionResumed{
		BaseEvent:    e.baseEvent(events.ExecutionResumedEvent, doc.WorkflowID),
		ExecutionID:  executionID,
		CheckpointID: checkpointID,
	})

	return doc, nil
}

// Cancel stops an execution before its next block. In-flight block calls are
// not preempted.
func (e *Engine) Cancel(ctx context.Context, executionID, reason string) (*models.ExecutionState, error) {
	doc, err := e.states.Transition(ctx, executionID, models.ExecutionStatusCancelled, reason)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, executionID, events.ExecutionCancelled{
		BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, doc.WorkflowID),
		ExecutionID: executionID,
		Reason:      reason,
	})

	return doc, nil
}

func (e *Engine) saveExecution(ctx context.Context, logger *slog.Logger, execCtx *models.ExecutionContext) {
	if e.executions == nil || execCtx == nil {
		return
	}

	if err := e.executions.SaveExecution(context.WithoutCancel(ctx), execCtx); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution record", "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		WorkerID:   e.workerID,
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func duplicateResult(record *idempotency.Record) *ExecuteResult {
	if record.Terminal() && len(record.Response) > 0 {
		var stored ExecuteResult
		if err := json.Unmarshal(record.Response, &stored); err == nil {
			stored.Duplicate = true

			return &stored
		}
	}

	return &ExecuteResult{
		ExecutionID: record.ExecutionID,
		Status:      models.ExecutionStatusRunning,
		Duplicate:   true,
	}
}
