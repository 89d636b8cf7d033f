// Package lock provides named mutual exclusion across processes on top of the
// shared key-value store. Locks auto-expire so a crashed holder cannot block a
// workflow forever; long critical sections must extend periodically. This is a
// deliberate liveness-over-strict-mutual-exclusion trade-off.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/store"
)

const (
	// DefaultTTL bounds the damage of a crashed holder.
	DefaultTTL = 30 * time.Second

	// DefaultBlockingTimeout is how long Acquire polls before giving up.
	DefaultBlockingTimeout = 10 * time.Second

	// pollInterval is the fixed retry interval while waiting for a lock.
	pollInterval = 100 * time.Millisecond

	keyPrefix = "flowgrid:lock:"
)

// ExecutionLockName builds the canonical lock name guarding one workflow's
// execution.
func ExecutionLockName(workflowID string) string {
	return "workflow:execute:" + workflowID
}

// BlockLockName builds the lock name guarding one block of one workflow.
func BlockLockName(workflowID, blockID string) string {
	return "workflow:" + workflowID + ":block:" + blockID
}

// Lock is a held lock. Ownership is proven by the random token: only the
// acquirer can release or extend.
type Lock struct {
	Name  string
	Token string

	manager *Manager
}

// Manager acquires and releases named locks on the shared store.
type Manager struct {
	kv              store.KV
	ttl             time.Duration
	blockingTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the default lock expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithBlockingTimeout overrides how long Acquire waits before failing.
func WithBlockingTimeout(timeout time.Duration) Option {
	return func(m *Manager) { m.blockingTimeout = timeout }
}

// NewManager creates a lock manager. A nil kv degrades to an in-memory store:
// locks then only exclude goroutines of this process.
func NewManager(kv store.KV, logger *slog.Logger, opts ...Option) *Manager {
	if kv == nil {
		kv = store.NewMemoryKV()
	}

	m := &Manager{
		kv:              kv,
		ttl:             DefaultTTL,
		blockingTimeout: DefaultBlockingTimeout,
		logger:          logger.With("module", "lock_manager"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// TryAcquire attempts the lock once without waiting.
func (m *Manager) TryAcquire(ctx context.Context, name string) (*Lock, bool, error) {
	token := uuid.New().String()

	ok, err := m.kv.SetNX(ctx, keyPrefix+name, token, m.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", name, err)
	}

	if !ok {
		return nil, false, nil
	}

	m.logger.DebugContext(ctx, "Lock acquired", "lock", name)

	return &Lock{Name: name, Token: token, manager: m}, true, nil
}

// Acquire blocks by polling at a fixed interval until the lock is free or the
// blocking timeout expires, at which point it fails with a
// LockAcquisitionError. That failure means "busy, retry later", not fatal.
func (m *Manager) Acquire(ctx context.Context, name string) (*Lock, error) {
	deadline := time.Now().Add(m.blockingTimeout)

	for {
		lock, ok, err := m.TryAcquire(ctx, name)
		if err != nil {
			return nil, err
		}

		if ok {
			return lock, nil
		}

		if time.Now().After(deadline) {
			return nil, &models.LockAcquisitionError{Name: name}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release frees the lock. The token is checked atomically before deletion so
// an expired-and-reacquired lock is never released by a stale holder.
func (l *Lock) Release(ctx context.Context) error {
	released, err := l.manager.kv.CompareAndDelete(ctx, keyPrefix+l.Name, l.Token)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.Name, err)
	}

	if !released {
		l.manager.logger.WarnContext(ctx, "Lock already expired or owned by someone else", "lock", l.Name)
	}

	return nil
}

// Extend pushes the expiry forward. Returns false when the lock is no longer
// held by this token.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = l.manager.ttl
	}

	extended, err := l.manager.kv.CompareAndExpire(ctx, keyPrefix+l.Name, l.Token, ttl)
	if err != nil {
		return false, fmt.Errorf("extend lock %s: %w", l.Name, err)
	}

	return extended, nil
}
