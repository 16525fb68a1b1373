package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/pkg/engine"
)

func ev(runID, flowName, eventType string) *engine.Event {
	return &engine.Event{
		RunID: runID,
		Flow:  flowName,
		Type:  eventType,
		At:    time.Now().UTC(),
	}
}

func recvOne(t *testing.T, ch <-chan *engine.Event) *engine.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryHub_PublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventRunStarted)))

	got := recvOne(t, ch)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, engine.EventRunStarted, got.Type)
}

func TestMemoryHub_FilterByRunID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{RunID: "run-2"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventRunStarted)))
	require.NoError(t, hub.Append(ctx, ev("run-2", "pipeline", engine.EventRunStarted)))

	got := recvOne(t, ch)
	assert.Equal(t, "run-2", got.RunID)
	assert.Empty(t, ch)
}

func TestMemoryHub_FilterByEventType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{
		EventTypes: []string{engine.EventRunCompleted, engine.EventRunFailed},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventMethodStarted)))
	require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventRunCompleted)))

	got := recvOne(t, ch)
	assert.Equal(t, engine.EventRunCompleted, got.Type)
}

func TestMemoryHub_FilterByFlow(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{Flow: "other"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventRunStarted)))
	require.NoError(t, hub.Append(ctx, ev("run-2", "other", engine.EventRunStarted)))

	got := recvOne(t, ch)
	assert.Equal(t, "other", got.Flow)
}

func TestMemoryHub_CancelStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventRunStarted)))
	assert.Empty(t, ch)
}

func TestMemoryHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	// Overfill the buffer; extra events are dropped, not blocking.
	for i := 0; i < defaultChannelBuffer+10; i++ {
		require.NoError(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventMethodDone)))
	}
	assert.Len(t, ch, defaultChannelBuffer)
}

func TestMemoryHub_CancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancelCtx := context.WithCancel(context.Background())
	cancelCtx()

	require.Error(t, hub.Append(ctx, ev("run-1", "pipeline", engine.EventRunStarted)))
	_, _, err := hub.Subscribe(ctx, Filter{})
	require.Error(t, err)
}
