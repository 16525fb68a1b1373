package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func noop(ctx context.Context, call *Call) (any, error) { return nil, nil }

func routeTo(token string) RouterFunc {
	return func(ctx context.Context, call *Call) (string, error) { return token, nil }
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	fe, ok := err.(*Error)
	require.Truef(t, ok, "expected *flow.Error, got %T: %v", err, err)
	assert.Equal(t, code, fe.Code)
}

// --- build validation ---

func TestBuild_MinimalFlow(t *testing.T) {
	g, err := NewBuilder("mini").
		Start("begin", noop).
		Listen("finish", On("begin"), noop).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "mini", g.Name())
	assert.Len(t, g.Methods(), 2)
	require.NotNil(t, g.Method("finish"))
	assert.Equal(t, RoleListener, g.Method("finish").Role)
}

func TestBuild_NoMethods(t *testing.T) {
	_, err := NewBuilder("empty").Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_NoUnconditionalStart(t *testing.T) {
	_, err := NewBuilder("stuck").
		StartWhen("later", On("never"), noop).
		Listen("never", On("later"), noop).
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_DuplicateName(t *testing.T) {
	_, err := NewBuilder("dup").
		Start("a", noop).
		Listen("a", On("a"), noop).
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_UndeclaredLeaf(t *testing.T) {
	_, err := NewBuilder("dangling").
		Start("a", noop).
		Listen("b", On("ghost"), noop).
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_ListenerWithoutCondition(t *testing.T) {
	_, err := NewBuilder("bad").
		Start("a", noop).
		Listen("b", nil, noop).
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_NilHandler(t *testing.T) {
	_, err := NewBuilder("bad").
		Start("a", nil).
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_SelfReference(t *testing.T) {
	_, err := NewBuilder("selfie").
		Start("a", noop).
		Listen("b", Or(On("a"), On("b")), noop).
		Build()
	requireCode(t, err, ErrCodeCycleDetected)
}

func TestBuild_IndirectCycle(t *testing.T) {
	_, err := NewBuilder("loop").
		Start("a", noop).
		Listen("b", And(On("a"), On("d")), noop).
		Listen("c", On("b"), noop).
		Listen("d", On("c"), noop).
		Build()
	fe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeCycleDetected, fe.Code)
	assert.Equal(t, "b", fe.Method) // first offender in declaration order
}

func TestBuild_OutcomeTokenCollidesWithMethod(t *testing.T) {
	_, err := NewBuilder("clash").
		Start("a", noop).
		Route("pick", On("a"), routeTo("b"), "b").
		Listen("b", On("a"), noop).
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_DuplicateOutcomeToken(t *testing.T) {
	_, err := NewBuilder("clash").
		Start("a", noop).
		Route("pick", On("a"), routeTo("x"), "x", "x").
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_OutcomeTokenSharedByRouters(t *testing.T) {
	_, err := NewBuilder("clash").
		Start("a", noop).
		Route("r1", On("a"), routeTo("go"), "go").
		Route("r2", On("a"), routeTo("go"), "go").
		Build()
	requireCode(t, err, ErrCodeDefinition)
}

func TestBuild_ListenerOnOutcomeToken(t *testing.T) {
	g, err := NewBuilder("routed").
		Start("a", noop).
		Route("pick", On("a"), routeTo("yes"), "yes", "no").
		Listen("onYes", On("yes"), noop).
		Listen("onNo", On("no"), noop).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "pick", g.RouterOf("yes"))
	assert.Equal(t, []string{"onYes"}, g.ListenersOf("yes"))
	assert.Equal(t, []string{"onNo"}, g.ListenersOf("no"))
}

func TestBuild_RouterGatedOnOwnToken(t *testing.T) {
	_, err := NewBuilder("ouro").
		Start("a", noop).
		Route("pick", Or(On("a"), On("again")), routeTo("again"), "again", "stop").
		Build()
	requireCode(t, err, ErrCodeCycleDetected)
}

func TestGraph_ListenersOf(t *testing.T) {
	g, err := NewBuilder("fan").
		Start("a", noop).
		Listen("b", On("a"), noop).
		Listen("c", On("a"), noop).
		Listen("d", And(On("b"), On("c")), noop).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, g.ListenersOf("a"))
	assert.Equal(t, []string{"d"}, g.ListenersOf("b"))
	assert.Empty(t, g.ListenersOf("d"))
}

func TestBuild_WithGuardOption(t *testing.T) {
	g, err := NewBuilder("guarded").
		Start("a", noop).
		Listen("b", On("a"), noop, WithGuard("cel", "state.ready == true")).
		Build()
	require.NoError(t, err)
	guard := g.Method("b").Guard
	require.NotNil(t, guard)
	assert.Equal(t, "cel", guard.Engine)
	assert.Equal(t, "state.ready == true", guard.Expr)
}

func TestBuild_InputSchemaCarried(t *testing.T) {
	raw := []byte(`{"type":"object"}`)
	g, err := NewBuilder("typed").
		Start("a", noop).
		InputSchema(raw).
		Build()
	require.NoError(t, err)
	assert.Equal(t, raw, g.InputSchema())
}
