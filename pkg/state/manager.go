// Package state manages the distributed workflow execution state document:
// the nine-state machine, the append-only transition history, checkpoints and
// the shared-store mirror that gives other processes visibility into a run.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/store"
)

const (
	// DefaultTTL keeps mirrored documents around for a week.
	DefaultTTL = 7 * 24 * time.Hour

	stateKeyPrefix   = "flowgrid:execution:state:"
	historyKeyPrefix = "flowgrid:execution:history:"
)

// ErrExecutionNotFound indicates no state document exists for the execution.
var ErrExecutionNotFound = fmt.Errorf("execution state not found")

// Manager owns execution state documents. With a shared store the documents
// and history are mirrored for cross-process durability; without one the
// manager degrades to process-local memory, which only gives single-instance
// guarantees.
type Manager struct {
	kv     store.KV
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	local   map[string]*models.ExecutionState
	history map[string][]models.StateTransition
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the mirror TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// NewManager creates a state manager. kv may be nil for local-only mode.
func NewManager(kv store.KV, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		kv:      kv,
		ttl:     DefaultTTL,
		logger:  logger.With("module", "state_manager"),
		local:   make(map[string]*models.ExecutionState),
		history: make(map[string][]models.StateTransition),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Create initializes a PENDING state document for a new execution.
func (m *Manager) Create(ctx context.Context, executionID, workflowID string, input map[string]any) (*models.ExecutionState, error) {
	now := time.Now().UTC()
	doc := &models.ExecutionState{
		ExecutionID:  executionID,
		WorkflowID:   workflowID,
		Status:       models.ExecutionStatusPending,
		InputData:    input,
		BlockResults: make(map[string]models.BlockResultSnapshot),
		Metadata:     make(map[string]any),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.save(ctx, doc); err != nil {
		return nil, err
	}

	return doc.Clone(), nil
}

// Get returns the current state document, preferring the shared store so
// transitions requested by other processes are visible.
func (m *Manager) Get(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	if m.kv != nil {
		raw, found, err := m.kv.Get(ctx, stateKeyPrefix+executionID)
		if err != nil {
			return nil, fmt.Errorf("load execution state %s: %w", executionID, err)
		}

		if found {
			var doc models.ExecutionState
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return nil, fmt.Errorf("decode execution state %s: %w", executionID, err)
			}

			return &doc, nil
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.local[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	return doc.Clone(), nil
}

// Transition moves the execution to a new status. Any pair outside the
// declared table fails with InvalidStateTransitionError and leaves the stored
// document untouched. Every accepted transition appends one entry to the
// append-only history log.
func (m *Manager) Transition(ctx context.Context, executionID string, to models.ExecutionStatus, reason string) (*models.ExecutionState, error) {
	doc, err := m.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	from := doc.Status
	if !models.CanTransition(from, to) {
		return nil, &models.InvalidStateTransitionError{ExecutionID: executionID, From: from, To: to}
	}

	now := time.Now().UTC()
	doc.Status = to
	doc.UpdatedAt = now

	switch to {
	case models.ExecutionStatusRunning:
		if doc.StartedAt == nil {
			doc.StartedAt = &now
		}
	case models.ExecutionStatusCompleted, models.ExecutionStatusFailed,
		models.ExecutionStatusCancelled, models.ExecutionStatusTimeout:
		doc.CompletedAt = &now
	}

	if err := m.save(ctx, doc); err != nil {
		return nil, err
	}

	entry := models.StateTransition{From: from, To: to, Reason: reason, Timestamp: now}
	if err := m.appendHistory(ctx, executionID, entry); err != nil {
		m.logger.ErrorContext(ctx, "Failed to append state history", "execution_id", executionID, "error", err)
	}

	m.logger.DebugContext(ctx, "Execution state transition",
		"execution_id", executionID, "from", from, "to", to, "reason", reason)

	return doc.Clone(), nil
}

// Update applies fn to the current document and persists the result. The
// status field must not be changed through Update; use Transition.
func (m *Manager) Update(ctx context.Context, executionID string, fn func(*models.ExecutionState)) (*models.ExecutionState, error) {
	doc, err := m.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	status := doc.Status
	fn(doc)
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()

	if err := m.save(ctx, doc); err != nil {
		return nil, err
	}

	return doc.Clone(), nil
}

// RecordBlockResult stores one block's result snapshot on the document.
func (m *Manager) RecordBlockResult(ctx context.Context, executionID, blockID string, result map[string]any, status string) error {
	_, err := m.Update(ctx, executionID, func(doc *models.ExecutionState) {
		if doc.BlockResults == nil {
			doc.BlockResults = make(map[string]models.BlockResultSnapshot)
		}

		doc.CurrentBlockID = blockID
		doc.BlockResults[blockID] = models.BlockResultSnapshot{
			Result:    result,
			Status:    status,
			Timestamp: time.Now().UTC(),
		}
	})

	return err
}

// History returns the append-only transition log for an execution.
func (m *Manager) History(ctx context.Context, executionID string) ([]models.StateTransition, error) {
	if m.kv == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()

		entries := make([]models.StateTransition, len(m.history[executionID]))
		copy(entries, m.history[executionID])

		return entries, nil
	}

	raws, err := m.kv.ListAll(ctx, historyKeyPrefix+executionID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.StateTransition, 0, len(raws))

	for _, raw := range raws {
		var entry models.StateTransition
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// SaveCheckpoint appends a named deep snapshot of the current document to its
// checkpoint list. The snapshot itself carries no checkpoint list to avoid
// recursive growth.
func (m *Manager) SaveCheckpoint(ctx context.Context, executionID, name string) (*models.Checkpoint, error) {
	var checkpoint models.Checkpoint

	_, err := m.Update(ctx, executionID, func(doc *models.ExecutionState) {
		snapshot := doc.Clone()
		snapshot.Checkpoints = nil

		checkpoint = models.Checkpoint{
			ID:            uuid.New().String(),
			Name:          name,
			StateSnapshot: snapshot,
			CreatedAt:     time.Now().UTC(),
		}

		doc.Checkpoints = append(doc.Checkpoints, checkpoint)
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Checkpoint saved",
		"execution_id", executionID, "checkpoint_id", checkpoint.ID, "name", name)

	return &checkpoint, nil
}

// RestoreCheckpoint replaces the live document's run-specific fields with the
// snapshot's, preserving the checkpoint list itself and tagging metadata with
// restored_from. The restore is logged as a history entry.
func (m *Manager) RestoreCheckpoint(ctx context.Context, executionID, checkpointID string) (*models.ExecutionState, error) {
	doc, err := m.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	var snapshot *models.ExecutionState

	for _, cp := range doc.Checkpoints {
		if cp.ID == checkpointID {
			snapshot = cp.StateSnapshot
			break
		}
	}

	if snapshot == nil {
		return nil, fmt.Errorf("checkpoint %s not found on execution %s", checkpointID, executionID)
	}

	from := doc.Status
	now := time.Now().UTC()

	restored := snapshot.Clone()
	restored.Checkpoints = doc.Checkpoints
	restored.UpdatedAt = now

	if restored.Metadata == nil {
		restored.Metadata = make(map[string]any)
	}

	restored.Metadata["restored_from"] = checkpointID

	if err := m.save(ctx, restored); err != nil {
		return nil, err
	}

	entry := models.StateTransition{
		From:      from,
		To:        restored.Status,
		Reason:    "restored from checkpoint " + checkpointID,
		Timestamp: now,
	}
	if err := m.appendHistory(ctx, executionID, entry); err != nil {
		m.logger.ErrorContext(ctx, "Failed to log checkpoint restore", "execution_id", executionID, "error", err)
	}

	return restored.Clone(), nil
}

// ByStatus returns the process-local state documents currently in the given
// status. Only executions driven by this process are visible; cross-process
// lookups go through Get with a known execution ID.
func (m *Manager) ByStatus(status models.ExecutionStatus) []*models.ExecutionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ExecutionState

	for _, doc := range m.local {
		if doc.Status == status {
			out = append(out, doc.Clone())
		}
	}

	return out
}

// Evict drops an execution's process-local document and history. The shared
// store mirror, when present, expires on its own TTL.
func (m *Manager) Evict(executionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.local, executionID)
	delete(m.history, executionID)
}

func (m *Manager) save(ctx context.Context, doc *models.ExecutionState) error {
	m.mu.Lock()
	m.local[doc.ExecutionID] = doc.Clone()
	m.pruneLocked(time.Now().UTC())
	m.mu.Unlock()

	if m.kv == nil {
		return nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode execution state %s: %w", doc.ExecutionID, err)
	}

	if err := m.kv.Set(ctx, stateKeyPrefix+doc.ExecutionID, string(raw), m.ttl); err != nil {
		return fmt.Errorf("mirror execution state %s: %w", doc.ExecutionID, err)
	}

	return nil
}

// pruneLocked drops terminal documents older than the TTL so the local map
// cannot grow without bound in local-only mode. Callers hold m.mu.
func (m *Manager) pruneLocked(now time.Time) {
	for id, doc := range m.local {
		if doc.Status.IsTerminal() && now.Sub(doc.UpdatedAt) > m.ttl {
			delete(m.local, id)
			delete(m.history, id)
		}
	}
}

func (m *Manager) appendHistory(ctx context.Context, executionID string, entry models.StateTransition) error {
	m.mu.Lock()
	m.history[executionID] = append(m.history[executionID], entry)
	m.mu.Unlock()

	if m.kv == nil {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	if err := m.kv.ListPush(ctx, historyKeyPrefix+executionID, string(raw)); err != nil {
		return err
	}

	// History expires together with the mirrored document.
	_, err = m.kv.Expire(ctx, historyKeyPrefix+executionID, m.ttl)

	return err
}
