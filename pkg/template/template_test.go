package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/template"
)

func TestRenderSolePlaceholderKeepsNativeType(t *testing.T) {
	variables := map[string]any{
		"count": 42,
		"items": []any{"a", "b"},
	}

	assert.Equal(t, 42, template.Render("{{count}}", variables))
	assert.Equal(t, []any{"a", "b"}, template.Render("{{ items }}", variables))
}

func TestRenderInterpolatesIntoStrings(t *testing.T) {
	variables := map[string]any{
		"name":  "orders",
		"count": 3,
	}

	result := template.Render("queue {{name}} has {{count}} entries", variables)
	assert.Equal(t, "queue orders has 3 entries", result)
}

func TestRenderFallsBackToEnvironment(t *testing.T) {
	t.Setenv("FLOWGRID_REGION", "eu-west-1")

	result := template.Render("{{FLOWGRID_REGION}}", map[string]any{})
	assert.Equal(t, "eu-west-1", result)
}

func TestRenderVariablesShadowEnvironment(t *testing.T) {
	t.Setenv("REGION", "from-env")

	result := template.Render("{{REGION}}", map[string]any{"REGION": "from-vars"})
	assert.Equal(t, "from-vars", result)
}

func TestRenderScopedSnapshotWinsOverProcessEnv(t *testing.T) {
	t.Setenv("REGION", "from-os")

	env := map[string]string{"REGION": "from-snapshot"}

	result := template.RenderScoped("{{REGION}}", map[string]any{}, env)
	assert.Equal(t, "from-snapshot", result)
}

func TestRenderScopedVariablesShadowSnapshot(t *testing.T) {
	env := map[string]string{"REGION": "from-snapshot"}

	result := template.RenderScoped("{{REGION}}", map[string]any{"REGION": "from-vars"}, env)
	assert.Equal(t, "from-vars", result)
}

func TestRenderWithContextResolvesThroughEnvironment(t *testing.T) {
	execCtx := &models.ExecutionContext{
		Variables:   map[string]any{"name": "orders"},
		Environment: map[string]string{"API_HOST": "api.internal"},
	}

	assert.Equal(t, "orders @ api.internal",
		template.RenderWithContext("{{name}} @ {{API_HOST}}", execCtx))
}

func TestRenderUnresolvedPlaceholderPassesThrough(t *testing.T) {
	result := template.Render("hello {{missing}}", map[string]any{})
	assert.Equal(t, "hello {{missing}}", result)

	result = template.Render("{{missing}}", map[string]any{})
	assert.Equal(t, "{{missing}}", result)
}

func TestRenderAllDescendsNestedValues(t *testing.T) {
	variables := map[string]any{"host": "db.internal", "port": 5432}

	inputs := map[string]any{
		"url": "postgres://{{host}}:{{port}}",
		"options": map[string]any{
			"replica": "{{host}}",
		},
		"tags":    []any{"{{host}}", 7},
		"retries": 3,
	}

	resolved := template.RenderAll(inputs, variables)

	assert.Equal(t, "postgres://db.internal:5432", resolved["url"])
	assert.Equal(t, "db.internal", resolved["options"].(map[string]any)["replica"])
	assert.Equal(t, []any{"db.internal", 7}, resolved["tags"])
	assert.Equal(t, 3, resolved["retries"])
}
