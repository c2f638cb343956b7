package expressions

import (
	"context"
	"testing"

	"github.com/rendis/cog-hubspot/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workflowsFixture() []any {
	return []any{
		map[string]any{"id": "1001", "name": "Onboarding"},
		map[string]any{"id": "1002", "name": "Nurture"},
		map[string]any{"id": "1003", "name": "Nurture"},
	}
}

func TestExpr_FilterByName(t *testing.T) {
	e := NewExprEngine()
	assert.Equal(t, "expr", e.Name())

	out, err := e.Evaluate(context.Background(), "filter(workflows, .name == target)", map[string]any{
		"workflows": workflowsFixture(),
		"target":    "Nurture",
	})
	require.NoError(t, err)

	matches, ok := out.([]any)
	require.True(t, ok)
	assert.Len(t, matches, 2)
}

func TestExpr_CachedProgramAcceptsNewData(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()
	const q = "any(workflows, .id == target)"

	out, err := e.Evaluate(ctx, q, map[string]any{"workflows": workflowsFixture(), "target": "1002"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, q, map[string]any{"workflows": workflowsFixture(), "target": "9999"})
	require.NoError(t, err)
	assert.Equal(t, false, out)

	out, err = e.Evaluate(ctx, q, map[string]any{"workflows": []any{}, "target": "1002"})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestExpr_Errors(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(ctx, "filter(", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(ctx, "1 / zero", map[string]any{"zero": "x"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}
