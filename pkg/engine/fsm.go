package engine

import (
	"github.com/cascadehq/cascade/pkg/flow"
)

// RunStatus is the lifecycle state of one run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusActive    RunStatus = "active"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// MethodStatus is the per-run lifecycle state of one method.
type MethodStatus string

const (
	MethodNotEligible MethodStatus = "not_eligible"
	MethodEligible    MethodStatus = "eligible"
	MethodRunning     MethodStatus = "running"
	MethodDone        MethodStatus = "done"
	MethodErrored     MethodStatus = "errored"
)

// ValidRunTransitions defines the allowed run state transitions.
var ValidRunTransitions = map[RunStatus][]RunStatus{
	RunStatusPending:   {RunStatusActive, RunStatusCancelled},
	RunStatusActive:    {RunStatusCompleted, RunStatusFailed, RunStatusCancelled},
	RunStatusCompleted: {},
	RunStatusFailed:    {},
	RunStatusCancelled: {},
}

// ValidMethodTransitions defines the allowed per-method transitions.
// done → eligible supports repeated activation when a later event batch
// satisfies the method's condition again. errored is terminal.
var ValidMethodTransitions = map[MethodStatus][]MethodStatus{
	MethodNotEligible: {MethodEligible},
	MethodEligible:    {MethodRunning},
	MethodRunning:     {MethodDone, MethodErrored},
	MethodDone:        {MethodEligible},
	MethodErrored:     {},
}

func isValidRunTransition(from, to RunStatus) bool {
	for _, a := range ValidRunTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

func isValidMethodTransition(from, to MethodStatus) bool {
	for _, a := range ValidMethodTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// transitionRun validates and applies a run status change.
func (r *runtime) transitionRun(to RunStatus) error {
	if !isValidRunTransition(r.status, to) {
		return flow.NewErrorf(flow.ErrCodeInvalidTransition,
			"invalid run transition: %s -> %s", r.status, to).
			WithDetails(map[string]any{"run_id": r.id})
	}
	r.status = to
	return nil
}

// transitionMethod validates and applies a method status change.
func (r *runtime) transitionMethod(method string, to MethodStatus) error {
	from := r.methodStatus[method]
	if !isValidMethodTransition(from, to) {
		return flow.NewErrorf(flow.ErrCodeInvalidTransition,
			"invalid method transition: %s -> %s", from, to).
			WithMethod(method).
			WithDetails(map[string]any{"run_id": r.id})
	}
	r.methodStatus[method] = to
	return nil
}
