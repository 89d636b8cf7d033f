// Package template resolves {{name}} placeholders in block inputs against the
// run's workflow variables, falling back to the run's environment namespace
// and finally the process environment. A placeholder nobody can resolve
// passes through literally rather than erroring, so unresolved references
// stay visible in block outputs.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// RenderWithContext resolves the placeholders in input against the execution
// context's variables (loop overlays included), then its environment
// namespace.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) any {
	return RenderScoped(input, executionCtx.Variables, executionCtx.Environment)
}

// RenderAllWithContext resolves placeholders in every string value of inputs
// against the execution context, descending into nested maps and slices.
func RenderAllWithContext(inputs map[string]any, executionCtx *models.ExecutionContext) map[string]any {
	return renderAll(inputs, executionCtx.Variables, executionCtx.Environment)
}

// Render resolves the placeholders in input against variables, then the
// process environment.
func Render(input string, variables map[string]any) any {
	return RenderScoped(input, variables, nil)
}

// RenderScoped resolves the placeholders in input against an explicit
// variable scope, then env, then the process environment. When the whole
// input is a single placeholder the resolved value keeps its native type, so
// numbers, maps and lists survive input mapping untouched; otherwise matches
// are interpolated as strings.
func RenderScoped(input string, variables map[string]any, env map[string]string) any {
	trimmed := strings.TrimSpace(input)

	if match := placeholderPattern.FindStringSubmatch(trimmed); match != nil && match[0] == trimmed {
		if value, ok := lookup(match[1], variables, env); ok {
			return value
		}

		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		if value, ok := lookup(name, variables, env); ok {
			return stringify(value)
		}

		return token
	})
}

// RenderAll resolves placeholders in every string value of inputs, descending
// into nested maps and slices. Non-string values pass through unchanged.
func RenderAll(inputs map[string]any, variables map[string]any) map[string]any {
	return renderAll(inputs, variables, nil)
}

func renderAll(inputs map[string]any, variables map[string]any, env map[string]string) map[string]any {
	if inputs == nil {
		return nil
	}

	resolved := make(map[string]any, len(inputs))
	for key, value := range inputs {
		resolved[key] = renderValue(value, variables, env)
	}

	return resolved
}

func renderValue(value any, variables map[string]any, env map[string]string) any {
	switch typed := value.(type) {
	case string:
		return RenderScoped(typed, variables, env)
	case map[string]any:
		return renderAll(typed, variables, env)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = renderValue(item, variables, env)
		}

		return items
	default:
		return value
	}
}

func lookup(name string, variables map[string]any, env map[string]string) (any, bool) {
	if variables != nil {
		if value, ok := variables[name]; ok {
			return value, true
		}
	}

	if env != nil {
		if value, ok := env[name]; ok {
			return value, true
		}
	}

	if value, ok := os.LookupEnv(name); ok {
		return value, true
	}

	return nil, false
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case map[string]any, []any:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return string(raw)
	default:
		return fmt.Sprint(typed)
	}
}
