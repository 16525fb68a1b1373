package expressions

import "context"

// Engine evaluates expressions against a run scope.
// Three implementations: CEL and Expr (guards), GoJQ (queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Scope assembles the evaluation scope handed to every engine. The four
// top-level variables are stable across engines: inputs (kickoff
// parameters), state (run state snapshot), outputs (latest output per
// method), event (the triggering event name).
func Scope(inputs, state, outputs map[string]any, event string) map[string]any {
	scope := make(map[string]any, 4)
	scope["inputs"] = orEmpty(inputs)
	scope["state"] = orEmpty(state)
	scope["outputs"] = orEmpty(outputs)
	scope["event"] = event
	return scope
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
