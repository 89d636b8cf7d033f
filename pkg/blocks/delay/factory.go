package delay

import (
	"github.com/flowgrid/flowgrid/pkg/protocol"
)

// DelayBlockFactory creates DelayBlock instances.
type DelayBlockFactory struct{}

// NewDelayBlockFactory creates a new factory instance.
func NewDelayBlockFactory() protocol.BlockFactory {
	return &DelayBlockFactory{}
}

// Create creates a new DelayBlock instance.
func (f *DelayBlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewDelayBlock(config)
}

// Type returns the block type tag.
func (f *DelayBlockFactory) Type() string {
	return "delay"
}

// Name returns the block display name.
func (f *DelayBlockFactory) Name() string {
	return "Delay"
}

// Description returns the factory description.
func (f *DelayBlockFactory) Description() string {
	return "Pauses the execution walk for a fixed duration"
}

// ConfigSchema returns the JSON schema for Delay block configuration.
func (f *DelayBlockFactory) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_ms": map[string]any{
				"type":        "number",
				"description": "How long to wait, in milliseconds",
				"minimum":     0,
			},
		},
		"required": []string{"duration_ms"},
	}
}

// InputSchema returns the JSON schema for Delay block inputs.
func (f *DelayBlockFactory) InputSchema() map[string]any {
	return nil
}
