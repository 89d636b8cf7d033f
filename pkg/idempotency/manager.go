// Package idempotency deduplicates repeated trigger calls that share a
// caller-supplied key. The first call atomically records an in-flight marker;
// every repeat within the record's lifetime gets the stored response back
// instead of starting a second execution. Runs must call Complete with their
// terminal payload so later duplicates never see a stuck placeholder.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/store"
)

const (
	// DefaultTTL is how long a completed record stays visible to duplicates.
	DefaultTTL = 24 * time.Hour

	// inFlightTTL bounds a placeholder whose run crashed before Complete.
	inFlightTTL = 2 * time.Hour

	keyPrefix = "flowgrid:idempotency:"
)

// RecordStatus marks whether a record is still running or terminal.
type RecordStatus string

const (
	StatusInFlight  RecordStatus = "in_flight"
	StatusCompleted RecordStatus = "completed"
	StatusFailed    RecordStatus = "failed"
)

// Record is the stored response for an idempotency key.
type Record struct {
	Key         string          `json:"key"`
	Status      RecordStatus    `json:"status"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Terminal reports whether the record carries a final result.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Manager implements idempotent trigger deduplication on the shared store.
type Manager struct {
	kv     store.KV
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager creates an idempotency manager. A nil kv degrades to process
// memory, deduplicating only within this instance.
func NewManager(kv store.KV, logger *slog.Logger) *Manager {
	if kv == nil {
		kv = store.NewMemoryKV()
	}

	return &Manager{
		kv:     kv,
		ttl:    DefaultTTL,
		logger: logger.With("module", "idempotency_manager"),
	}
}

// Begin records key as in-flight on first sight. When the key was already
// seen, Begin returns the stored record (in-flight or terminal) and
// duplicate=true; the caller must not start a new execution.
func (m *Manager) Begin(ctx context.Context, key, executionID string) (record *Record, duplicate bool, err error) {
	fresh := &Record{
		Key:         key,
		Status:      StatusInFlight,
		ExecutionID: executionID,
		CreatedAt:   time.Now().UTC(),
	}

	raw, err := json.Marshal(fresh)
	if err != nil {
		return nil, false, fmt.Errorf("encode idempotency record: %w", err)
	}

	stored, err := m.kv.SetNX(ctx, keyPrefix+key, string(raw), inFlightTTL)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency begin %s: %w", key, err)
	}

	if stored {
		return fresh, false, nil
	}

	existing, err := m.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		// The previous record expired between SetNX and Get; treat the call
		// as first sight.
		return m.Begin(ctx, key, executionID)
	}

	m.logger.DebugContext(ctx, "Duplicate idempotent trigger",
		"key", key, "status", existing.Status, "execution_id", existing.ExecutionID)

	return existing, true, nil
}

// Complete overwrites the in-flight marker with the run's terminal payload.
func (m *Manager) Complete(ctx context.Context, key string, status RecordStatus, response any) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("idempotency complete %s: status %q is not terminal", key, status)
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("encode idempotency response: %w", err)
	}

	existing, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record := &Record{
		Key:         key,
		Status:      status,
		Response:    payload,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	if existing != nil {
		record.ExecutionID = existing.ExecutionID
		record.CreatedAt = existing.CreatedAt
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}

	if err := m.kv.Set(ctx, keyPrefix+key, string(raw), m.ttl); err != nil {
		return fmt.Errorf("idempotency complete %s: %w", key, err)
	}

	return nil
}

// Abandon removes key's in-flight marker when the execution never started,
// so a retry of the same key begins fresh instead of being served a stuck
// placeholder.
func (m *Manager) Abandon(ctx context.Context, key string) error {
	if err := m.kv.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("idempotency abandon %s: %w", key, err)
	}

	return nil
}

// Get returns the stored record for key, or nil when absent.
func (m *Manager) Get(ctx context.Context, key string) (*Record, error) {
	raw, found, err := m.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("idempotency get %s: %w", key, err)
	}

	if !found {
		return nil, nil
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}

	return &record, nil
}
