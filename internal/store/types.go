package store

import (
	"encoding/json"
	"time"
)

// Run statuses as persisted. Mirrors the engine's run lifecycle.
const (
	RunStatusPending   = "pending"
	RunStatusActive    = "active"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// RunRecord is the persisted representation of one kickoff.
type RunRecord struct {
	ID          string          `json:"id"`
	Flow        string          `json:"flow"`
	Status      string          `json:"status"`
	Inputs      map[string]any  `json:"inputs,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	Final       json.RawMessage `json:"final,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RunEvent is an immutable entry in a run's event log.
type RunEvent struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Flow      string          `json:"flow"`
	Type      string          `json:"event_type"`
	Method    string          `json:"method,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// RunUpdate specifies mutable fields of a run record.
type RunUpdate struct {
	Status      *string         `json:"status,omitempty"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	Final       json.RawMessage `json:"final,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Flow   string     `json:"flow,omitempty"`
	Status string     `json:"status,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// EventFilter specifies criteria for listing run events by type.
type EventFilter struct {
	RunID  string     `json:"run_id,omitempty"`
	Flow   string     `json:"flow,omitempty"`
	Method string     `json:"method,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
	Limit  int        `json:"limit,omitempty"`
}
