package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cascadehq/cascade/internal/expressions"
	"github.com/cascadehq/cascade/internal/logging"
	"github.com/cascadehq/cascade/pkg/flow"
)

// runtime is the live state of one run. All bookkeeping fields are
// touched only between scheduling passes, on the goroutine driving
// execute; handlers see them through snapshots and the mutex-guarded
// State.
type runtime struct {
	engine *Engine
	id     string
	graph  *flow.Graph

	inputs  map[string]any
	state   *flow.State
	outputs []flow.MethodOutput

	status       RunStatus
	methodStatus map[string]MethodStatus

	// windows holds, per gated method, the condition leaves fired since
	// the method's last activation. Cleared when the method activates.
	windows  map[string]map[string]bool
	triggers map[string]string // gated method -> most recent window event
	payloads map[string]any    // event name -> payload

	runErr    *flow.Error
	startedAt time.Time
	logger    *slog.Logger
}

// activation is one scheduled method invocation.
type activation struct {
	method  *flow.Method
	trigger string
	input   any
}

// invocation is the outcome of one method invocation.
type invocation struct {
	method  *flow.Method
	value   any
	outcome string // routers only
	err     error
}

// firedEvent is one event produced by a completed pass.
type firedEvent struct {
	name    string
	payload any
}

func newRuntime(e *Engine, inputs map[string]any) *runtime {
	r := &runtime{
		engine:       e,
		id:           newRunID(),
		graph:        e.graph,
		inputs:       inputs,
		state:        flow.NewState(),
		status:       RunStatusPending,
		methodStatus: make(map[string]MethodStatus, len(e.graph.Methods())),
		windows:      make(map[string]map[string]bool),
		triggers:     make(map[string]string),
		payloads:     make(map[string]any),
		logger:       e.logger,
	}
	r.state.Merge(inputs)
	for _, m := range e.graph.Methods() {
		r.methodStatus[m.Name] = MethodNotEligible
	}
	return r
}

// execute drives the run to completion: dispatch every eligible method
// concurrently, join, fold the completions into the fired-event
// bookkeeping, compute the next frontier, repeat. The run ends when a
// pass produces no new activations, a handler fails, or the context is
// cancelled.
func (r *runtime) execute(ctx context.Context) *RunResult {
	r.startedAt = time.Now().UTC()
	_ = r.transitionRun(RunStatusActive)
	r.emit(ctx, EventRunStarted, "", r.inputs)
	r.logger.InfoContext(ctx, "run started")

	frontier := r.initialFrontier(ctx)

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			break
		}
		results := r.dispatch(ctx, frontier)
		batch := r.collect(ctx, results)
		if r.runErr != nil || ctx.Err() != nil {
			break
		}
		frontier = r.nextFrontier(ctx, batch)
	}

	return r.finalize(ctx)
}

// initialFrontier activates every unconditional start method.
func (r *runtime) initialFrontier(ctx context.Context) []activation {
	var frontier []activation
	for _, m := range r.graph.Methods() {
		if m.Role != flow.RoleStart || m.Condition != nil {
			continue
		}
		_ = r.transitionMethod(m.Name, MethodEligible)
		r.emit(ctx, EventMethodEligible, m.Name, nil)
		frontier = append(frontier, activation{method: m})
	}
	return frontier
}

// dispatch fans the frontier out onto the worker pool and joins. Results
// land in frontier order so the outputs log stays deterministic for
// sequential flows.
func (r *runtime) dispatch(ctx context.Context, frontier []activation) []invocation {
	results := make([]invocation, len(frontier))
	var wg sync.WaitGroup

	for i, act := range frontier {
		_ = r.transitionMethod(act.method.Name, MethodRunning)
		r.emit(ctx, EventMethodStarted, act.method.Name, nil)

		i, act := i, act
		wg.Add(1)
		err := r.engine.pool.Submit(ctx, func(taskCtx context.Context) error {
			defer wg.Done()
			results[i] = r.invoke(taskCtx, act)
			return results[i].err
		})
		if err != nil {
			wg.Done()
			results[i] = invocation{method: act.method, err: err}
		}
	}

	wg.Wait()
	return results
}

// invoke runs one method body. Safe to call concurrently with other
// invocations of the same pass: it only reads run bookkeeping frozen for
// the duration of the pass, plus the mutex-guarded State.
func (r *runtime) invoke(ctx context.Context, act activation) invocation {
	m := act.method
	ctx = logging.WithMethod(ctx, m.Name)

	if timeout := r.engine.cfg.MethodTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outputs := append([]flow.MethodOutput(nil), r.outputs...)
	call := flow.NewCall(m.Name, act.trigger, act.input, r.state, outputs, r.queryFunc(act.trigger, outputs))

	r.logger.DebugContext(ctx, "method started", "trigger", act.trigger)

	if m.Role == flow.RoleRouter {
		token, err := m.Router(ctx, call)
		if err != nil {
			return invocation{method: m, err: r.asFlowError(ctx, err, m.Name)}
		}
		return invocation{method: m, value: token, outcome: token}
	}

	out, err := m.Handler(ctx, call)
	if err != nil {
		return invocation{method: m, err: r.asFlowError(ctx, err, m.Name)}
	}
	return invocation{method: m, value: out}
}

// queryFunc builds the jq evaluator injected into a Call.
func (r *runtime) queryFunc(trigger string, outputs []flow.MethodOutput) func(string) (any, error) {
	return func(expr string) (any, error) {
		scope := expressions.Scope(r.inputs, r.state.Snapshot(), latestOutputs(outputs), trigger)
		return r.engine.jq.Evaluate(context.Background(), expr, scope)
	}
}

// collect folds pass results into the run bookkeeping and returns the
// events fired by this pass. Runs serially between passes.
func (r *runtime) collect(ctx context.Context, results []invocation) []firedEvent {
	var batch []firedEvent

	for _, res := range results {
		m := res.method

		if res.err != nil {
			_ = r.transitionMethod(m.Name, MethodErrored)
			r.emit(ctx, EventMethodErrored, m.Name, res.err.Error())
			r.logger.ErrorContext(ctx, "method failed", "method", m.Name, "error", res.err)
			if r.runErr == nil {
				if fe, ok := res.err.(*flow.Error); ok {
					r.runErr = fe
				} else {
					r.runErr = flow.NewError(flow.ErrCodeStepFailed, res.err.Error()).WithMethod(m.Name)
				}
			}
			continue
		}

		_ = r.transitionMethod(m.Name, MethodDone)
		r.outputs = append(r.outputs, flow.MethodOutput{Name: m.Name, Value: res.value, Outcome: res.outcome})
		r.payloads[m.Name] = res.value
		r.emit(ctx, EventMethodDone, m.Name, res.value)
		batch = append(batch, firedEvent{name: m.Name, payload: res.value})

		if m.Role != flow.RoleRouter || res.outcome == "" {
			continue
		}

		token := res.outcome
		if len(m.Outcomes) > 0 && !containsString(m.Outcomes, token) {
			if r.engine.cfg.StrictOutcomes {
				r.runErr = flow.NewErrorf(flow.ErrCodeRouterOutcome,
					"router returned undeclared outcome %q", token).WithMethod(m.Name)
				continue
			}
			r.logger.WarnContext(ctx, "router returned undeclared outcome",
				"method", m.Name, "outcome", token)
		}
		r.emit(ctx, EventRouterRouted, m.Name, token)
		r.payloads[token] = token
		batch = append(batch, firedEvent{name: token, payload: token})
	}

	return batch
}

// nextFrontier records the pass's fired events into the per-method
// windows, then activates every gated method whose condition is
// satisfied by its window. The window is consumed on activation, so an
// AND needs a fresh set of leaves before it fires again.
func (r *runtime) nextFrontier(ctx context.Context, batch []firedEvent) []activation {
	for _, ev := range batch {
		for _, name := range r.graph.ListenersOf(ev.name) {
			w := r.windows[name]
			if w == nil {
				w = make(map[string]bool)
				r.windows[name] = w
			}
			w[ev.name] = true
			r.triggers[name] = ev.name
		}
	}

	var frontier []activation
	for _, m := range r.graph.Methods() {
		if m.Condition == nil {
			continue
		}
		switch r.methodStatus[m.Name] {
		case MethodEligible, MethodRunning, MethodErrored:
			continue
		}

		w := r.windows[m.Name]
		if len(w) == 0 || !m.Condition.SatisfiedBy(w) {
			continue
		}

		trigger := r.triggers[m.Name]
		delete(r.windows, m.Name)

		if m.Guard != nil {
			pass, err := r.evalGuard(ctx, m, trigger)
			if err != nil {
				r.runErr = err
				return nil
			}
			if !pass {
				r.logger.DebugContext(ctx, "guard skipped activation",
					"method", m.Name, "trigger", trigger)
				continue
			}
		}

		_ = r.transitionMethod(m.Name, MethodEligible)
		r.emit(ctx, EventMethodEligible, m.Name, nil)
		frontier = append(frontier, activation{
			method:  m,
			trigger: trigger,
			input:   r.payloads[trigger],
		})
	}
	return frontier
}

// evalGuard evaluates a method's guard against the run scope. A non-bool
// result is treated as a definition problem and fails the run.
func (r *runtime) evalGuard(ctx context.Context, m *flow.Method, trigger string) (bool, *flow.Error) {
	scope := expressions.Scope(r.inputs, r.state.Snapshot(), latestOutputs(r.outputs), trigger)

	var engine expressions.Engine
	switch m.Guard.Engine {
	case "cel":
		engine = r.engine.cel
	case "expr":
		engine = r.engine.expr
	}

	out, err := engine.Evaluate(ctx, m.Guard.Expr, scope)
	if err != nil {
		if fe, ok := err.(*flow.Error); ok {
			return false, fe.WithMethod(m.Name)
		}
		return false, flow.NewError(flow.ErrCodeExpression, err.Error()).WithMethod(m.Name)
	}
	pass, ok := out.(bool)
	if !ok {
		return false, flow.NewErrorf(flow.ErrCodeDefinition,
			"guard %q evaluated to %T, want bool", m.Guard.Expr, out).WithMethod(m.Name)
	}
	return pass, nil
}

// finalize settles the run status and assembles the result.
func (r *runtime) finalize(ctx context.Context) *RunResult {
	switch {
	case ctx.Err() != nil:
		// Cancellation takes precedence over method errors surfaced by
		// the same teardown.
		_ = r.transitionRun(RunStatusCancelled)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.runErr = flow.NewError(flow.ErrCodeTimeout, "run deadline exceeded")
		} else {
			r.runErr = flow.NewError(flow.ErrCodeCancelled, "run cancelled")
		}
		r.emit(context.WithoutCancel(ctx), EventRunCancelled, "", r.runErr.Error())
		r.logger.WarnContext(ctx, "run cancelled")
	case r.runErr != nil:
		_ = r.transitionRun(RunStatusFailed)
		r.emit(ctx, EventRunFailed, "", r.runErr.Error())
		r.logger.ErrorContext(ctx, "run failed", "error", r.runErr)
	default:
		_ = r.transitionRun(RunStatusCompleted)
		r.emit(ctx, EventRunCompleted, "", nil)
		r.logger.InfoContext(ctx, "run completed", "outputs", len(r.outputs))
	}

	result := &RunResult{
		RunID:       r.id,
		Flow:        r.graph.Name(),
		Status:      r.status,
		Outputs:     r.outputs,
		Error:       r.runErr,
		StartedAt:   r.startedAt,
		CompletedAt: time.Now().UTC(),
	}
	if n := len(r.outputs); n > 0 {
		result.Final = r.outputs[n-1].Value
	}
	return result
}

func (r *runtime) asFlowError(ctx context.Context, err error, method string) error {
	var fe *flow.Error
	if errors.As(err, &fe) {
		if fe.Method == "" {
			fe = fe.WithMethod(method)
		}
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return flow.NewError(flow.ErrCodeTimeout, "method timed out").WithMethod(method).WithCause(err)
	}
	return flow.NewErrorf(flow.ErrCodeStepFailed, "method %s: %s", method, err.Error()).
		WithMethod(method).WithCause(err)
}

// latestOutputs flattens an outputs log into a map of the most recent
// value per method.
func latestOutputs(outputs []flow.MethodOutput) map[string]any {
	m := make(map[string]any, len(outputs))
	for _, o := range outputs {
		m[o.Name] = o.Value
	}
	return m
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
