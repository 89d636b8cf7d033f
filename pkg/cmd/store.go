package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/store"
)

// NewKV creates the shared key-value store backing locks, execution state,
// idempotency records and the dead letter queue. An empty URL degrades to
// process memory, which only gives single-instance guarantees.
func NewKV(url string, logger *slog.Logger) store.KV {
	if url == "" {
		logger.Warn("No store URL configured, coordination is process-local only")

		return store.NewMemoryKV()
	}

	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		kv, err := store.NewRedisKVFromURL(url, logger)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis store: %w", err))
		}

		return kv
	}

	panic("unsupported store URL: " + url)
}
