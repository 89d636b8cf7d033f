// Package scheduler turns a workflow's blocks and edges into a deterministic
// execution schedule. Blocks are ordered topologically; blocks whose
// dependency counts tie keep their declaration order, so the same workflow
// always yields the same schedule.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// Schedule is the result of planning a workflow.
type Schedule struct {
	// Order lists every enabled block in execution order.
	Order []*models.Block

	// StartBlockIDs are the blocks with no incoming edges.
	StartBlockIDs []string

	// Dependencies maps a block ID to the IDs of blocks it waits on.
	Dependencies map[string][]string

	// Successors maps a block ID to its outgoing edges in declaration order.
	Successors map[string][]*models.Edge
}

// Plan validates the workflow graph and computes its schedule. It returns a
// *models.CyclicDependencyError when the edges form a cycle and a validation
// error when an edge references a missing block.
func Plan(workflow *models.Workflow) (*Schedule, error) {
	blocks := make([]*models.Block, 0, len(workflow.Blocks))
	index := make(map[string]int, len(workflow.Blocks))

	for _, block := range workflow.Blocks {
		if !block.Enabled {
			continue
		}

		if _, exists := index[block.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate block id %q", models.ErrValidation, block.ID)
		}

		index[block.ID] = len(blocks)
		blocks = append(blocks, block)
	}

	schedule := &Schedule{
		Dependencies: make(map[string][]string, len(blocks)),
		Successors:   make(map[string][]*models.Edge, len(blocks)),
	}

	inDegree := make(map[string]int, len(blocks))
	for _, block := range blocks {
		inDegree[block.ID] = 0
	}

	for _, edge := range workflow.Edges {
		if _, ok := index[edge.SourceBlockID]; !ok {
			return nil, fmt.Errorf("%w: edge %q references unknown source block %q",
				models.ErrValidation, edge.ID, edge.SourceBlockID)
		}

		if _, ok := index[edge.TargetBlockID]; !ok {
			return nil, fmt.Errorf("%w: edge %q references unknown target block %q",
				models.ErrValidation, edge.ID, edge.TargetBlockID)
		}

		schedule.Successors[edge.SourceBlockID] = append(schedule.Successors[edge.SourceBlockID], edge)
		schedule.Dependencies[edge.TargetBlockID] = append(schedule.Dependencies[edge.TargetBlockID], edge.SourceBlockID)
		inDegree[edge.TargetBlockID]++
	}

	// Kahn's algorithm. The ready set is kept sorted by declaration index so
	// independent blocks run in the order they were written.
	ready := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if inDegree[block.ID] == 0 {
			ready = append(ready, block.ID)
		}
	}

	schedule.StartBlockIDs = append([]string(nil), ready...)

	// A runnable workflow needs at least one entry point. A non-empty graph
	// without one is necessarily cyclic.
	if len(schedule.StartBlockIDs) == 0 {
		if len(blocks) > 0 {
			return nil, &models.CyclicDependencyError{WorkflowID: workflow.ID}
		}

		return nil, fmt.Errorf("%w: workflow %s has no start block", models.ErrValidation, workflow.ID)
	}

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		schedule.Order = append(schedule.Order, blocks[index[id]])

		released := make([]string, 0)

		for _, edge := range schedule.Successors[id] {
			inDegree[edge.TargetBlockID]--
			if inDegree[edge.TargetBlockID] == 0 {
				released = append(released, edge.TargetBlockID)
			}
		}

		ready = append(ready, released...)
		sort.SliceStable(ready, func(i, j int) bool {
			return index[ready[i]] < index[ready[j]]
		})
	}

	if len(schedule.Order) != len(blocks) {
		return nil, &models.CyclicDependencyError{WorkflowID: workflow.ID}
	}

	return schedule, nil
}
