package schedule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/protocol"
)

// ErrConfigNil rejects factory calls without a configuration map.
var ErrConfigNil = errors.New("config cannot be nil")

// Factory creates schedule triggers.
type Factory struct{}

func NewTriggerFactory() protocol.TriggerFactory {
	return &Factory{}
}

func (f *Factory) ID() string {
	return "schedule"
}

func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	trigger, err := NewTrigger(config, logger)
	if err != nil {
		return nil, fmt.Errorf("create schedule trigger: %w", err)
	}

	return trigger, nil
}
