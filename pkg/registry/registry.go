// Package registry holds the block and trigger factories available to the
// engine. Factories are registered by type; block creation validates the
// block's config against the factory's JSON schema before instantiation.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/protocol"
)

type Registry struct {
	logger           *slog.Logger
	blockFactories   map[string]protocol.BlockFactory
	triggerFactories map[string]protocol.TriggerFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:           log,
		blockFactories:   make(map[string]protocol.BlockFactory),
		triggerFactories: make(map[string]protocol.TriggerFactory),
	}
}

func (r *Registry) RegisterBlock(factory protocol.BlockFactory) {
	r.blockFactories[factory.Type()] = factory
}

func (r *Registry) RegisterTrigger(factory protocol.TriggerFactory) {
	r.triggerFactories[factory.ID()] = factory
}

// CreateBlock validates config against the factory's schema and instantiates
// the block. Unknown types and schema violations are validation errors.
func (r *Registry) CreateBlock(blockID, blockType string, config map[string]any) (protocol.Block, error) {
	factory, ok := r.blockFactories[blockType]
	if !ok {
		return nil, models.NewValidationError(blockID, blockType,
			fmt.Sprintf("block type %q not registered", blockType))
	}

	if schema := factory.ConfigSchema(); schema != nil {
		if err := validateSchema(config, schema); err != nil {
			return nil, models.NewValidationError(blockID, blockType,
				fmt.Sprintf("invalid config: %v", err))
		}
	}

	block, err := factory.Create(config)
	if err != nil {
		return nil, models.NewValidationError(blockID, blockType, err.Error())
	}

	return block, nil
}

// ValidateInputs checks the resolved inputs of a block against the factory's
// input schema, when the factory declares one.
func (r *Registry) ValidateInputs(blockID, blockType string, inputs map[string]any) error {
	factory, ok := r.blockFactories[blockType]
	if !ok {
		return models.NewValidationError(blockID, blockType,
			fmt.Sprintf("block type %q not registered", blockType))
	}

	schema := factory.InputSchema()
	if schema == nil {
		return nil
	}

	if err := validateSchema(inputs, schema); err != nil {
		return models.NewValidationError(blockID, blockType,
			fmt.Sprintf("invalid inputs: %v", err))
	}

	return nil
}

func (r *Registry) CreateTrigger(triggerID string, config map[string]any) (protocol.Trigger, error) {
	factory, ok := r.triggerFactories[triggerID]
	if !ok {
		return nil, fmt.Errorf("trigger ID '%s' not registered", triggerID)
	}

	return factory.Create(config, r.logger)
}

// AvailableBlocks returns the registered block types.
func (r *Registry) AvailableBlocks() []string {
	types := make([]string, 0, len(r.blockFactories))
	for blockType := range r.blockFactories {
		types = append(types, blockType)
	}

	return types
}

func (r *Registry) IsBlockRegistered(blockType string) bool {
	_, exists := r.blockFactories[blockType]

	return exists
}

// ValidateData checks arbitrary data against a JSON schema. Used by the
// engine for per-block input schemas declared on workflow definitions.
func ValidateData(data, schema map[string]any) error {
	return validateSchema(data, schema)
}

func validateSchema(data map[string]any, schema map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(violations, "; "))
	}

	return nil
}
