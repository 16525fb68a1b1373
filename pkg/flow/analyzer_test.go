package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamondGraph(t *testing.T) *Graph {
	t.Helper()
	//     begin
	//    /     \
	//  left   right
	//    \     /
	//     join
	g, err := NewBuilder("diamond").
		Start("begin", noop).
		Listen("left", On("begin"), noop).
		Listen("right", On("begin"), noop).
		Listen("join", And(On("left"), On("right")), noop).
		Build()
	require.NoError(t, err)
	return g
}

func TestLevels_Diamond(t *testing.T) {
	levels := diamondGraph(t).Levels()
	assert.Equal(t, 0, levels["begin"])
	assert.Equal(t, 1, levels["left"])
	assert.Equal(t, 1, levels["right"])
	assert.Equal(t, 2, levels["join"])
}

func TestLevels_MaxOfCandidatePaths(t *testing.T) {
	// short and long path converge on "sink"; sink must sit below the
	// deepest contributor.
	g, err := NewBuilder("uneven").
		Start("begin", noop).
		Listen("mid", On("begin"), noop).
		Listen("deep", On("mid"), noop).
		Listen("sink", Or(On("begin"), On("deep")), noop).
		Build()
	require.NoError(t, err)
	levels := g.Levels()
	assert.Equal(t, 2, levels["deep"])
	assert.Equal(t, 3, levels["sink"])
}

func TestLevels_RouterOutcomesOneBelow(t *testing.T) {
	g, err := NewBuilder("routed").
		Start("begin", noop).
		Route("pick", On("begin"), routeTo("go"), "go", "halt").
		Listen("onGo", On("go"), noop).
		Build()
	require.NoError(t, err)
	levels := g.Levels()
	assert.Equal(t, 1, levels["pick"])
	assert.Equal(t, 2, levels["onGo"]) // one level below the router
}

func TestLevels_Idempotent(t *testing.T) {
	g := diamondGraph(t)
	first := g.Levels()
	second := g.Levels()
	assert.Equal(t, first, second)
}

func TestAncestors_Diamond(t *testing.T) {
	anc := diamondGraph(t).Ancestors()
	assert.Empty(t, anc["begin"])
	assert.Equal(t, map[string]bool{"begin": true}, anc["left"])
	assert.Equal(t, map[string]bool{"begin": true, "left": true, "right": true}, anc["join"])
}

func TestAncestors_TokenResolvesToRouter(t *testing.T) {
	g, err := NewBuilder("routed").
		Start("begin", noop).
		Route("pick", On("begin"), routeTo("go"), "go").
		Listen("onGo", On("go"), noop).
		Build()
	require.NoError(t, err)
	anc := g.Ancestors()
	assert.True(t, anc["onGo"]["pick"])
	assert.True(t, anc["onGo"]["begin"])
}

func TestChildren_Diamond(t *testing.T) {
	kids := diamondGraph(t).Children()
	assert.Equal(t, []string{"left", "right"}, kids["begin"])
	assert.Equal(t, []string{"join"}, kids["left"])
	assert.Empty(t, kids["join"])
}

func TestChildren_RouterIncludesOutcomeListeners(t *testing.T) {
	g, err := NewBuilder("routed").
		Start("begin", noop).
		Route("pick", On("begin"), routeTo("yes"), "yes", "no").
		Listen("onYes", On("yes"), noop).
		Listen("onNo", On("no"), noop).
		Listen("onPick", On("pick"), noop).
		Build()
	require.NoError(t, err)
	kids := g.Children()
	assert.Equal(t, []string{"onPick", "onYes", "onNo"}, kids["pick"])
}

func TestOutDegree(t *testing.T) {
	deg := diamondGraph(t).OutDegree()
	assert.Equal(t, 2, deg["begin"])
	assert.Equal(t, 1, deg["left"])
	assert.Equal(t, 0, deg["join"])
}
