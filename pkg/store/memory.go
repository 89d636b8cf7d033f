package store

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is the process-local degradation of the shared store. It gives the
// coordination managers single-instance-only guarantees, which is explicitly
// weaker than the redis implementation and intended for tests and single-node
// deployments.
type MemoryKV struct {
	mu    sync.Mutex
	items map[string]memoryItem
	lists map[string][]string
}

type memoryItem struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		items: make(map[string]memoryItem),
		lists: make(map[string][]string),
	}
}

// live returns the item when present and not expired, pruning expired entries.
func (s *MemoryKV) live(key string) (memoryItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return memoryItem{}, false
	}

	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(s.items, key)

		return memoryItem{}, false
	}

	return item, true
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}

	return time.Now().Add(ttl)
}

func (s *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return "", false, nil
	}

	return item.value, true, nil
}

func (s *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = memoryItem{value: value, expiresAt: expiry(ttl)}

	return nil
}

func (s *MemoryKV) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}

	s.items[key] = memoryItem{value: value, expiresAt: expiry(ttl)}

	return true, nil
}

func (s *MemoryKV) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return false, nil
	}

	item.expiresAt = expiry(ttl)
	s.items[key] = item

	return true, nil
}

func (s *MemoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)

	return nil
}

func (s *MemoryKV) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok || item.value != expected {
		return false, nil
	}

	delete(s.items, key)

	return true, nil
}

func (s *MemoryKV) CompareAndExpire(_ context.Context, key, expected string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok || item.value != expected {
		return false, nil
	}

	item.expiresAt = expiry(ttl)
	s.items[key] = item

	return true, nil
}

func (s *MemoryKV) ListPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[key] = append(s.lists[key], value)

	return nil
}

func (s *MemoryKV) ListPop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}

	value := list[0]
	s.lists[key] = list[1:]

	return value, true, nil
}

func (s *MemoryKV) ListLen(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.lists[key])), nil
}

func (s *MemoryKV) ListAll(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.lists[key]))
	copy(out, s.lists[key])

	return out, nil
}

func (s *MemoryKV) Close() error {
	return nil
}
