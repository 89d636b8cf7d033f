// Package cmd provides common initialization for the command-line entrypoints.
package cmd

import (
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/registry"
	"github.com/flowgrid/flowgrid/pkg/triggers/schedule"
)

// NewRegistry builds the registry with every built-in block and trigger
// factory registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultBlocks()
	reg.RegisterTrigger(schedule.NewTriggerFactory())

	return reg
}
