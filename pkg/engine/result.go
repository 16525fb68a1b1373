package engine

import (
	"time"

	"github.com/cascadehq/cascade/pkg/flow"
)

// RunResult is the outcome of one run.
type RunResult struct {
	RunID       string              `json:"run_id"`
	Flow        string              `json:"flow"`
	Status      RunStatus           `json:"status"`
	Outputs     []flow.MethodOutput `json:"outputs"`
	Final       any                 `json:"final,omitempty"`
	Error       *flow.Error         `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
}

// Output returns the most recent output of the named method and whether
// one exists.
func (r *RunResult) Output(name string) (any, bool) {
	for i := len(r.Outputs) - 1; i >= 0; i-- {
		if r.Outputs[i].Name == name {
			return r.Outputs[i].Value, true
		}
	}
	return nil, false
}

// AsyncRun is the future returned by KickoffAsync.
type AsyncRun struct {
	done   chan struct{}
	result *RunResult
	err    error
}

// Wait blocks until the run finishes and returns its result. The error
// mirrors Kickoff's: non-nil only for pre-run validation failures.
func (a *AsyncRun) Wait() (*RunResult, error) {
	<-a.done
	return a.result, a.err
}

// Done returns a channel closed when the run finishes.
func (a *AsyncRun) Done() <-chan struct{} {
	return a.done
}
