package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/pkg/flow"
)

// White-box tests of the activation-window bookkeeping, driven by
// synthetic event batches.

func windowRuntime(t *testing.T, cond *flow.Condition) *runtime {
	t.Helper()
	g := mustBuild(t, flow.NewBuilder("windows").
		Start("begin", emit(nil)).
		Listen("a", flow.On("begin"), emit(nil)).
		Listen("b", flow.On("begin"), emit(nil)).
		Listen("gated", cond, emit(nil)))
	e := mustEngine(t, g, Config{})
	return newRuntime(e, nil)
}

// names of the methods activated by a synthetic batch.
func activated(r *runtime, events ...string) []string {
	batch := make([]firedEvent, len(events))
	for i, ev := range events {
		batch[i] = firedEvent{name: ev, payload: ev}
	}
	frontier := r.nextFrontier(context.Background(), batch)
	names := make([]string, len(frontier))
	for i, act := range frontier {
		names[i] = act.method.Name
	}
	return names
}

// complete walks an activated method through running to done so it can
// become eligible again.
func complete(t *testing.T, r *runtime, method string) {
	t.Helper()
	require.NoError(t, r.transitionMethod(method, MethodRunning))
	require.NoError(t, r.transitionMethod(method, MethodDone))
}

func TestWindow_AndAccumulatesAcrossBatches(t *testing.T) {
	r := windowRuntime(t, flow.And(flow.On("a"), flow.On("b")))

	assert.Empty(t, activated(r, "a"), "one AND leaf must not activate")
	assert.Equal(t, []string{"gated"}, activated(r, "b"), "second leaf completes the window")
}

func TestWindow_AndResetAllowsSecondActivation(t *testing.T) {
	r := windowRuntime(t, flow.And(flow.On("a"), flow.On("b")))

	assert.Equal(t, []string{"gated"}, activated(r, "a", "b"))
	complete(t, r, "gated")

	// The window was consumed: a single leaf must not re-activate.
	assert.Empty(t, activated(r, "a"))
	// A fresh, complete batch of leaves activates the method again.
	assert.Equal(t, []string{"gated"}, activated(r, "b"))
}

func TestWindow_OrSingleActivationPerBatch(t *testing.T) {
	r := windowRuntime(t, flow.Or(flow.On("a"), flow.On("b")))

	assert.Equal(t, []string{"gated"}, activated(r, "a", "b"),
		"both OR leaves in one batch yield one activation")
	complete(t, r, "gated")

	assert.Equal(t, []string{"gated"}, activated(r, "a"),
		"a later independent firing re-activates")
}

func TestWindow_NoActivationWhileEligible(t *testing.T) {
	r := windowRuntime(t, flow.Or(flow.On("a"), flow.On("b")))

	assert.Equal(t, []string{"gated"}, activated(r, "a"))
	// Still eligible, not yet dispatched: another leaf firing must not
	// double-schedule it.
	assert.Empty(t, activated(r, "b"))
}

func TestWindow_ErroredMethodNeverReactivates(t *testing.T) {
	r := windowRuntime(t, flow.On("a"))

	assert.Equal(t, []string{"gated"}, activated(r, "a"))
	require.NoError(t, r.transitionMethod("gated", MethodRunning))
	require.NoError(t, r.transitionMethod("gated", MethodErrored))

	assert.Empty(t, activated(r, "a"))
}

func TestWindow_TriggerAndPayloadFlow(t *testing.T) {
	r := windowRuntime(t, flow.On("a"))
	r.payloads["a"] = "payload-from-a"

	frontier := r.nextFrontier(context.Background(), []firedEvent{{name: "a", payload: "payload-from-a"}})
	require.Len(t, frontier, 1)
	assert.Equal(t, "a", frontier[0].trigger)
	assert.Equal(t, "payload-from-a", frontier[0].input)
}

func TestTransitions_RunTable(t *testing.T) {
	assert.True(t, isValidRunTransition(RunStatusPending, RunStatusActive))
	assert.True(t, isValidRunTransition(RunStatusActive, RunStatusCompleted))
	assert.True(t, isValidRunTransition(RunStatusActive, RunStatusFailed))
	assert.False(t, isValidRunTransition(RunStatusCompleted, RunStatusActive))
	assert.False(t, isValidRunTransition(RunStatusPending, RunStatusCompleted))
}

func TestTransitions_MethodTable(t *testing.T) {
	assert.True(t, isValidMethodTransition(MethodNotEligible, MethodEligible))
	assert.True(t, isValidMethodTransition(MethodDone, MethodEligible))
	assert.False(t, isValidMethodTransition(MethodErrored, MethodEligible))
	assert.False(t, isValidMethodTransition(MethodNotEligible, MethodRunning))
}

func TestTransitions_InvalidMethodTransitionError(t *testing.T) {
	r := windowRuntime(t, flow.On("a"))
	err := r.transitionMethod("gated", MethodDone)
	require.Error(t, err)
	assert.Equal(t, flow.ErrCodeInvalidTransition, err.(*flow.Error).Code)
}
