// Package registry provides block factory registration for the registry system.
package registry

import (
	"github.com/flowgrid/flowgrid/pkg/blocks/delay"
	"github.com/flowgrid/flowgrid/pkg/blocks/log"
	"github.com/flowgrid/flowgrid/pkg/blocks/transform"
)

// RegisterDefaultBlocks registers all built-in block factories with the
// registry. Control-flow block types (condition, loop, parallel) are handled
// by the engine itself and never instantiated through the registry.
func (r *Registry) RegisterDefaultBlocks() {
	r.RegisterBlock(log.NewLogBlockFactory())
	r.RegisterBlock(transform.NewTransformBlockFactory())
	r.RegisterBlock(delay.NewDelayBlockFactory())
}
