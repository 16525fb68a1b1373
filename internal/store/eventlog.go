package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cascadehq/cascade/pkg/engine"
	"github.com/cascadehq/cascade/pkg/flow"
)

// HistorySink persists the engine's event stream and maintains the runs
// table from lifecycle events. It implements engine.Sink.
type HistorySink struct {
	store Store
}

// NewHistorySink wraps a Store as an engine event sink.
func NewHistorySink(s Store) *HistorySink {
	return &HistorySink{store: s}
}

var _ engine.Sink = (*HistorySink)(nil)

// Append records one engine event. Run lifecycle events additionally
// create or update the run record, so history survives process restarts.
func (h *HistorySink) Append(ctx context.Context, event *engine.Event) error {
	payload, err := marshalPayload(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	if err := h.store.AppendEvent(ctx, &RunEvent{
		RunID:     event.RunID,
		Flow:      event.Flow,
		Type:      event.Type,
		Method:    event.Method,
		Payload:   payload,
		Timestamp: event.At,
	}); err != nil {
		return err
	}

	switch event.Type {
	case engine.EventRunStarted:
		return h.store.CreateRun(ctx, &RunRecord{
			ID:        event.RunID,
			Flow:      event.Flow,
			Status:    RunStatusActive,
			Inputs:    asInputs(event.Payload),
			CreatedAt: event.At,
			StartedAt: &event.At,
		})
	case engine.EventRunCompleted:
		return h.finishRun(ctx, event, RunStatusCompleted, nil)
	case engine.EventRunFailed:
		return h.finishRun(ctx, event, RunStatusFailed, payload)
	case engine.EventRunCancelled:
		return h.finishRun(ctx, event, RunStatusCancelled, payload)
	}
	return nil
}

func (h *HistorySink) finishRun(ctx context.Context, event *engine.Event, status string, errPayload json.RawMessage) error {
	st := status
	update := RunUpdate{
		Status:      &st,
		CompletedAt: &event.At,
	}
	if len(errPayload) > 0 {
		update.Error = errPayload
	}
	return h.store.UpdateRun(ctx, event.RunID, update)
}

// RecordResult persists the outputs and final value of a finished run.
// Called after Kickoff returns, since those are not part of the event
// stream.
func (h *HistorySink) RecordResult(ctx context.Context, result *engine.RunResult) error {
	outputs, err := json.Marshal(result.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	update := RunUpdate{Outputs: outputs}
	if result.Final != nil {
		final, err := json.Marshal(result.Final)
		if err != nil {
			return fmt.Errorf("marshal final: %w", err)
		}
		update.Final = final
	}
	return h.store.UpdateRun(ctx, result.RunID, update)
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

func asInputs(payload any) map[string]any {
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	return nil
}

// EventLog provides replay over a run's persisted event stream.
type EventLog struct {
	store Store
}

// NewEventLog wraps a Store to provide event log queries.
func NewEventLog(s Store) *EventLog {
	return &EventLog{store: s}
}

// GetEvents returns events for a run with sequence > since, ordered by
// sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error) {
	return el.store.GetEvents(ctx, runID, since)
}

// GetEventsByType returns events of a specific type matching the filter.
func (el *EventLog) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*RunEvent, error) {
	return el.store.GetEventsByType(ctx, eventType, filter)
}

// MethodReplay is the reconstructed state of one method after replay.
type MethodReplay struct {
	Method      string          `json:"method"`
	Status      string          `json:"status"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMs  int64           `json:"duration_ms,omitempty"`
}

// Replay replays all events for a run and returns per-method states.
// Returns an error if sequence gaps are detected.
func (el *EventLog) Replay(ctx context.Context, runID string) (map[string]*MethodReplay, error) {
	events, err := el.store.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	states := make(map[string]*MethodReplay)
	if len(events) == 0 {
		return states, nil
	}

	// Validate sequence contiguity.
	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, flow.NewErrorf(flow.ErrCodeStore,
				"sequence gap in run %s: expected %d, got %d", runID, expected, e.Sequence)
		}
	}

	for _, e := range events {
		if e.Method == "" {
			continue
		}

		ms, ok := states[e.Method]
		if !ok {
			ms = &MethodReplay{Method: e.Method, Status: "not_eligible"}
			states[e.Method] = ms
		}

		switch e.Type {
		case engine.EventMethodEligible:
			ms.Status = "eligible"

		case engine.EventMethodStarted:
			ms.Status = "running"
			ts := e.Timestamp
			ms.StartedAt = &ts

		case engine.EventMethodDone:
			ms.Status = "done"
			ts := e.Timestamp
			ms.CompletedAt = &ts
			ms.Output = e.Payload
			if ms.StartedAt != nil {
				ms.DurationMs = ts.Sub(*ms.StartedAt).Milliseconds()
			}

		case engine.EventMethodErrored:
			ms.Status = "errored"
			ms.Error = e.Payload

		case engine.EventRouterRouted:
			// The routed token is recorded on the event; the method's
			// own done event already carries its output.
		}
	}

	return states, nil
}
