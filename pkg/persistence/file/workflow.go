package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// workflowExtensions lists the definition formats in lookup order. A JSON
// document wins over a YAML one with the same id.
var workflowExtensions = []string{".json", ".yaml", ".yml"}

// WorkflowRepository reads workflow definitions from
// <root>/workflows/<id>.json or <id>.yaml.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// Workflows loads every workflow definition under the root.
func (r *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	dir := os.DirFS(path.Join(r.root, "workflows"))

	seen := make(map[string]bool)
	workflows := make([]*models.Workflow, 0)

	for _, ext := range workflowExtensions {
		files, err := fs.Glob(dir, "*"+ext)
		if err != nil {
			return nil, persistence.NewWorkflowError("Workflows", "", err)
		}

		for _, file := range files {
			id := strings.TrimSuffix(file, ext)
			if seen[id] {
				continue
			}

			seen[id] = true

			workflow, err := r.WorkflowByID(ctx, id)
			if err != nil {
				return nil, err
			}

			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

// WorkflowByID loads one workflow definition.
func (r *WorkflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	for _, ext := range workflowExtensions {
		raw, err := os.ReadFile(path.Join(r.root, "workflows", id+ext))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
		}

		workflow, err := decodeWorkflow(raw, ext)
		if err != nil {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
		}

		return workflow, nil
	}

	return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
}

func decodeWorkflow(raw []byte, ext string) (*models.Workflow, error) {
	var workflow models.Workflow

	if ext == ".json" {
		if err := json.Unmarshal(raw, &workflow); err != nil {
			return nil, err
		}

		return &workflow, nil
	}

	// YAML definitions go through an intermediate JSON pass so the models
	// keep a single set of struct tags.
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	bridged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(bridged, &workflow); err != nil {
		return nil, err
	}

	return &workflow, nil
}
