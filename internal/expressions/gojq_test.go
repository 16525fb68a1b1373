package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/pkg/flow"
)

func TestGoJQ_FieldAccess(t *testing.T) {
	e := NewGoJQEngine()
	scope := Scope(
		map[string]any{"name": "cascade"},
		nil, nil, "",
	)
	out, err := e.Evaluate(context.Background(), ".inputs.name", scope)
	require.NoError(t, err)
	assert.Equal(t, "cascade", out)
}

func TestGoJQ_Aggregation(t *testing.T) {
	e := NewGoJQEngine()
	scope := map[string]any{
		"outputs": map[string]any{
			"fetch": map[string]any{"rows": []any{1, 2, 3}},
		},
	}
	out, err := e.Evaluate(context.Background(), ".outputs.fetch.rows | add", scope)
	require.NoError(t, err)
	assert.Equal(t, 6.0, out)
}

func TestGoJQ_IntNormalization(t *testing.T) {
	e := NewGoJQEngine()
	scope := map[string]any{"state": map[string]any{"count": 7}}
	out, err := e.Evaluate(context.Background(), ".state.count * 2", scope)
	require.NoError(t, err)
	assert.Equal(t, 14.0, out)
}

func TestGoJQ_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()
	scope := map[string]any{"xs": []any{1, 2, 3}}
	out, err := e.Evaluate(context.Background(), ".xs[]", scope)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, out)
}

func TestGoJQ_NoOutput(t *testing.T) {
	e := NewGoJQEngine()
	out, err := e.Evaluate(context.Background(), "empty", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_ParseError(t *testing.T) {
	e := NewGoJQEngine()
	_, err := e.Evaluate(context.Background(), ".foo[", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, flow.ErrCodeValidation, err.(*flow.Error).Code)
}

func TestGoJQ_EnvBlocked(t *testing.T) {
	e := NewGoJQEngine()
	out, err := e.Evaluate(context.Background(), "$ENV | length", map[string]any{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, out)
}
