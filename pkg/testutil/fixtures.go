package testutil

import (
	"encoding/json"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// WriteWorkflowFile stores a workflow definition where the file persistence
// layer expects it: <root>/workflows/<id>.json.
func WriteWorkflowFile(t *testing.T, root string, workflow *models.Workflow) {
	t.Helper()

	dir := path.Join(root, "workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	raw, err := json.MarshalIndent(workflow, "", "  ")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path.Join(dir, workflow.ID+".json"), raw, 0o644))
}
