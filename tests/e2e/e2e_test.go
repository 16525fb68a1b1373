package e2e

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/internal/store"
	"github.com/cascadehq/cascade/internal/streaming"
	"github.com/cascadehq/cascade/pkg/diagram"
	"github.com/cascadehq/cascade/pkg/engine"
	"github.com/cascadehq/cascade/pkg/flow"
)

// --- Test harness ---

// harness wires the full stack: libSQL store, history sink, live event
// hub, and an engine registry, the same shape cmd/cascade assembles.
type harness struct {
	t        *testing.T
	store    *store.LibSQLStore
	sink     *store.HistorySink
	eventLog *store.EventLog
	hub      *streaming.MemoryHub
	registry *engine.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "e2e.db")
	s, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})

	h := &harness{
		t:        t,
		store:    s,
		sink:     store.NewHistorySink(s),
		eventLog: store.NewEventLog(s),
		hub:      streaming.NewMemoryHub(),
		registry: engine.NewRegistry(),
	}
	t.Cleanup(h.registry.Shutdown)
	return h
}

func (h *harness) register(g *flow.Graph) {
	h.t.Helper()
	_, err := h.registry.Register(g, engine.Config{
		PoolSize:      4,
		MethodTimeout: 5 * time.Second,
		Logger:        slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		Sink:          engine.FanoutSink{h.sink, h.hub},
	})
	require.NoError(h.t, err)
}

// orderGraph mirrors the built-in order flow: a start, a router with
// two outcomes, a listener per branch, and an And-gated confirmation.
func orderGraph(t *testing.T) *flow.Graph {
	t.Helper()

	g, err := flow.NewBuilder("orders").
		Start("intake", func(ctx context.Context, call *flow.Call) (any, error) {
			qty, _ := call.State.Get("qty")
			return map[string]any{"qty": qty}, nil
		}).
		Route("triage", flow.On("intake"), func(ctx context.Context, call *flow.Call) (string, error) {
			in, _ := call.Input.(map[string]any)
			if q, ok := in["qty"].(float64); ok && q > 0 {
				return "accept", nil
			}
			if q, ok := in["qty"].(int); ok && q > 0 {
				return "accept", nil
			}
			return "reject", nil
		}, "accept", "reject").
		Listen("reserve", flow.On("accept"), func(ctx context.Context, call *flow.Call) (any, error) {
			call.State.Set("reserved", true)
			return "reserved", nil
		}).
		Listen("decline", flow.On("reject"), func(ctx context.Context, call *flow.Call) (any, error) {
			return "declined", nil
		}).
		Listen("confirm", flow.And(flow.On("intake"), flow.On("reserve")), func(ctx context.Context, call *flow.Call) (any, error) {
			out, ok := call.Output("intake")
			require.True(t, ok)
			return map[string]any{"confirmed": true, "intake": out}, nil
		}).
		Build()
	require.NoError(t, err)
	return g
}

// --- Tests ---

func TestE2E_SyncRunPersistsHistory(t *testing.T) {
	h := newHarness(t)
	h.register(orderGraph(t))
	ctx := context.Background()

	result, err := h.registry.Kickoff(ctx, "orders", map[string]any{"qty": 3})
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusCompleted, result.Status)
	require.NoError(t, h.sink.RecordResult(ctx, result))

	confirm, ok := result.Output("confirm")
	require.True(t, ok)
	assert.Equal(t, true, confirm.(map[string]any)["confirmed"])
	_, ranDecline := result.Output("decline")
	assert.False(t, ranDecline)

	rec, err := h.store.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusCompleted, rec.Status)
	assert.Equal(t, "orders", rec.Flow)
	assert.NotEmpty(t, rec.Outputs)
	require.NotNil(t, rec.CompletedAt)

	events, err := h.eventLog.GetEvents(ctx, result.RunID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, engine.EventRunStarted, events[0].Type)
	assert.Equal(t, engine.EventRunCompleted, events[len(events)-1].Type)
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Sequence+1, events[i].Sequence)
	}

	replay, err := h.eventLog.Replay(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "done", replay["intake"].Status)
	assert.Equal(t, "done", replay["triage"].Status)
	assert.Equal(t, "done", replay["reserve"].Status)
	assert.Equal(t, "done", replay["confirm"].Status)
	assert.NotContains(t, replay, "decline")
}

func TestE2E_RejectPath(t *testing.T) {
	h := newHarness(t)
	h.register(orderGraph(t))
	ctx := context.Background()

	result, err := h.registry.Kickoff(ctx, "orders", map[string]any{"qty": 0})
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusCompleted, result.Status)

	declined, ok := result.Output("decline")
	require.True(t, ok)
	assert.Equal(t, "declined", declined)
	_, ranReserve := result.Output("reserve")
	assert.False(t, ranReserve)
	_, ranConfirm := result.Output("confirm")
	assert.False(t, ranConfirm)
}

func TestE2E_AsyncRunWithLiveEvents(t *testing.T) {
	h := newHarness(t)
	h.register(orderGraph(t))
	ctx := context.Background()

	finished, cancel, err := h.hub.Subscribe(ctx, streaming.Filter{
		Flow:       "orders",
		EventTypes: []string{engine.EventRunCompleted, engine.EventRunFailed},
	})
	require.NoError(t, err)
	defer cancel()

	eng, err := h.registry.Get("orders")
	require.NoError(t, err)
	async := eng.KickoffAsync(ctx, map[string]any{"qty": 2})

	result, err := async.Wait()
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusCompleted, result.Status)

	select {
	case ev := <-finished:
		assert.Equal(t, engine.EventRunCompleted, ev.Type)
		assert.Equal(t, result.RunID, ev.RunID)
	case <-time.After(2 * time.Second):
		t.Fatal("no run completion event on hub")
	}
}

func TestE2E_FailedRunRecordsError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	g, err := flow.NewBuilder("flaky").
		Start("begin", func(ctx context.Context, call *flow.Call) (any, error) {
			return "ok", nil
		}).
		Listen("explode", flow.On("begin"), func(ctx context.Context, call *flow.Call) (any, error) {
			return nil, flow.NewErrorf(flow.ErrCodeStepFailed, "upstream unavailable")
		}).
		Build()
	require.NoError(t, err)
	h.register(g)

	result, err := h.registry.Kickoff(ctx, "flaky", nil)
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, flow.ErrCodeStepFailed, result.Error.Code)
	require.NoError(t, h.sink.RecordResult(ctx, result))

	rec, err := h.store.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)

	replay, err := h.eventLog.Replay(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "done", replay["begin"].Status)
	assert.Equal(t, "errored", replay["explode"].Status)
}

func TestE2E_DiagramOverlayFromReplay(t *testing.T) {
	h := newHarness(t)
	g := orderGraph(t)
	h.register(g)
	ctx := context.Background()

	result, err := h.registry.Kickoff(ctx, "orders", map[string]any{"qty": 1})
	require.NoError(t, err)
	require.Equal(t, engine.RunStatusCompleted, result.Status)

	replay, err := h.eventLog.Replay(ctx, result.RunID)
	require.NoError(t, err)
	statuses := make(map[string]string, len(replay))
	for name, ms := range replay {
		statuses[name] = ms.Status
	}

	model := diagram.Build(g)
	diagram.Annotate(model, statuses)
	mermaid := diagram.RenderMermaid(model)
	assert.Contains(t, mermaid, "class intake done")
	assert.Contains(t, mermaid, "class reserve done")
	assert.NotContains(t, mermaid, "class decline done")
}
