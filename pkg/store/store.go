// Package store provides the shared key-value store contract used by the
// distributed coordination managers (lock, state, idempotency, dead letter
// queue). A redis implementation gives cross-process guarantees; the in-memory
// implementation degrades gracefully to single-instance semantics.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// KV is the minimal shared-store surface the coordination managers need:
// plain get/set with TTL, an atomic set-if-absent, atomic compare-and-act
// primitives for token-owned keys, and list operations for queue semantics.
type KV interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key with the given TTL (0 means no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only when key is absent, atomically. Returns true
	// when the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Expire resets the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Delete removes key unconditionally.
	Delete(ctx context.Context, key string) error

	// CompareAndDelete removes key only when its current value equals
	// expected, atomically. Returns true when the key was removed.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	// CompareAndExpire resets the TTL only when the current value equals
	// expected, atomically. Returns true when the TTL was reset.
	CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)

	// ListPush appends value to the list stored at key.
	ListPush(ctx context.Context, key, value string) error

	// ListPop removes and returns the oldest element of the list at key.
	ListPop(ctx context.Context, key string) (value string, found bool, err error)

	// ListLen returns the length of the list stored at key.
	ListLen(ctx context.Context, key string) (int64, error)

	// ListAll returns every element of the list at key, oldest first,
	// without consuming them.
	ListAll(ctx context.Context, key string) ([]string, error)

	// Close releases the underlying connection, if any.
	Close() error
}
