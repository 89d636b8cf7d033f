package transform

import (
	"github.com/flowgrid/flowgrid/pkg/protocol"
)

// TransformBlockFactory creates TransformBlock instances.
type TransformBlockFactory struct{}

// NewTransformBlockFactory creates a new factory instance.
func NewTransformBlockFactory() protocol.BlockFactory {
	return &TransformBlockFactory{}
}

// Create creates a new TransformBlock instance.
func (f *TransformBlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewTransformBlock(config)
}

// Type returns the block type tag.
func (f *TransformBlockFactory) Type() string {
	return "transform"
}

// Name returns the block display name.
func (f *TransformBlockFactory) Name() string {
	return "Transform"
}

// Description returns the factory description.
func (f *TransformBlockFactory) Description() string {
	return "Reshapes data by rendering a {{name}} placeholder expression against workflow variables and block inputs"
}

// ConfigSchema returns the JSON schema for Transform block configuration.
func (f *TransformBlockFactory) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Expression with {{name}} placeholders. A sole placeholder keeps the value's native type.",
				"examples": []string{
					"{{user_name}}",
					"order {{order_id}} totals {{total}}",
				},
			},
		},
		"required": []string{"expression"},
	}
}

// InputSchema returns the JSON schema for Transform block inputs.
func (f *TransformBlockFactory) InputSchema() map[string]any {
	return nil
}
