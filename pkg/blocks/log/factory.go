package log

import (
	"github.com/flowgrid/flowgrid/pkg/protocol"
)

// LogBlockFactory creates LogBlock instances.
type LogBlockFactory struct{}

// NewLogBlockFactory creates a new factory instance.
func NewLogBlockFactory() protocol.BlockFactory {
	return &LogBlockFactory{}
}

// Create creates a new LogBlock instance.
func (f *LogBlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewLogBlock(config)
}

// Type returns the block type tag.
func (f *LogBlockFactory) Type() string {
	return "log"
}

// Name returns the block display name.
func (f *LogBlockFactory) Name() string {
	return "Log"
}

// Description returns the factory description.
func (f *LogBlockFactory) Description() string {
	return "Logs a message at a configured level (debug, info, warn, error) with template support for dynamic content"
}

// ConfigSchema returns the JSON schema for Log block configuration.
func (f *LogBlockFactory) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"enum":        []string{"debug", "info", "warn", "error"},
				"default":     "info",
			},
		},
	}
}

// InputSchema returns the JSON schema for Log block inputs.
func (f *LogBlockFactory) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"description": "Message to log. Supports {{name}} placeholders resolved from workflow variables.",
			},
		},
		"required": []string{"message"},
	}
}
