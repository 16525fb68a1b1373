package engine

import (
	"context"
	"time"
)

// Run event types emitted through the Sink.
const (
	EventRunStarted     = "run.started"
	EventRunCompleted   = "run.completed"
	EventRunFailed      = "run.failed"
	EventRunCancelled   = "run.cancelled"
	EventMethodEligible = "method.eligible"
	EventMethodStarted  = "method.started"
	EventMethodDone     = "method.done"
	EventMethodErrored  = "method.errored"
	EventRouterRouted   = "router.routed"
)

// Event is one entry of a run's event stream.
type Event struct {
	RunID   string    `json:"run_id"`
	Flow    string    `json:"flow"`
	Type    string    `json:"type"`
	Method  string    `json:"method,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives run events as they happen. Implementations must be safe
// for concurrent use; the run history store is the primary implementation.
// A nil sink on the Engine disables event emission.
type Sink interface {
	Append(ctx context.Context, event *Event) error
}

// FanoutSink delivers each event to every child sink. The first error
// is returned after all sinks have been tried.
type FanoutSink []Sink

func (f FanoutSink) Append(ctx context.Context, event *Event) error {
	var firstErr error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// emit sends an event to the configured sink. Sink failures are logged
// and do not fail the run.
func (r *runtime) emit(ctx context.Context, eventType, method string, payload any) {
	if r.engine.sink == nil {
		return
	}
	ev := &Event{
		RunID:   r.id,
		Flow:    r.graph.Name(),
		Type:    eventType,
		Method:  method,
		Payload: payload,
		At:      time.Now().UTC(),
	}
	if err := r.engine.sink.Append(ctx, ev); err != nil {
		r.logger.WarnContext(ctx, "event sink append failed",
			"event_type", eventType, "error", err)
	}
}
