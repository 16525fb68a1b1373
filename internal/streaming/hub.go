package streaming

import (
	"context"

	"github.com/cascadehq/cascade/pkg/engine"
)

// Filter specifies which run events a subscriber wants to receive.
type Filter struct {
	RunID      string   `json:"run_id,omitempty"`
	Flow       string   `json:"flow,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for live run events. Implementations also
// satisfy engine.Sink, so a hub can be wired directly into an engine.
type EventHub interface {
	engine.Sink
	Subscribe(ctx context.Context, filter Filter) (<-chan *engine.Event, func(), error)
}
