package flow

import "context"

// Role classifies a declared method.
type Role string

const (
	RoleStart    Role = "start"
	RoleListener Role = "listener"
	RoleRouter   Role = "router"
)

// HandlerFunc is the body of a start or listener method. The returned
// value becomes the method's fired-event payload, visible to downstream
// conditions and in the run's outputs log.
type HandlerFunc func(ctx context.Context, call *Call) (any, error)

// RouterFunc is the body of a router method. The returned token selects
// which downstream branch fires; it is recorded as a fired event of its
// own alongside the router's name.
type RouterFunc func(ctx context.Context, call *Call) (string, error)

// Guard is an optional expression evaluated when a method's condition
// becomes satisfied. A guard that evaluates to false skips the
// activation. Engine names follow the expression engines: "cel", "expr".
type Guard struct {
	Engine string
	Expr   string
}

// Method is one declared step of a flow: its name, role, gating
// condition, and body. Descriptors are created once at build time and
// shared read-only across every run of the flow.
type Method struct {
	Name      string
	Role      Role
	Condition *Condition // nil for an unconditional start
	Outcomes  []string   // router only; empty means open set
	Guard     *Guard

	Handler HandlerFunc // start / listener
	Router  RouterFunc  // router
}

// MethodOutput is one entry of a run's ordered outputs log.
type MethodOutput struct {
	Name    string `json:"name"`
	Value   any    `json:"value"`
	Outcome string `json:"outcome,omitempty"` // routers only
}

// Call carries the invocation context handed to a method body.
type Call struct {
	Method  string // name of the executing method
	Trigger string // event whose firing activated this method ("" for starts)
	Input   any    // payload of the triggering event (nil for starts)
	State   *State

	outputs []MethodOutput
	query   func(expr string) (any, error)
}

// NewCall assembles a Call. Used by the execution engine and by tests
// that exercise method bodies directly.
func NewCall(method, trigger string, input any, state *State, outputs []MethodOutput, query func(string) (any, error)) *Call {
	return &Call{
		Method:  method,
		Trigger: trigger,
		Input:   input,
		State:   state,
		outputs: outputs,
		query:   query,
	}
}

// Outputs returns the outputs log accumulated before this invocation.
func (c *Call) Outputs() []MethodOutput {
	return c.outputs
}

// Output returns the most recent output of the named method and whether
// one exists.
func (c *Call) Output(name string) (any, bool) {
	for i := len(c.outputs) - 1; i >= 0; i-- {
		if c.outputs[i].Name == name {
			return c.outputs[i].Value, true
		}
	}
	return nil, false
}

// Query evaluates a jq expression over the invocation scope:
// {inputs, state, outputs, event}. Available when the engine wired a
// query evaluator; otherwise returns a VALIDATION_ERROR.
func (c *Call) Query(expr string) (any, error) {
	if c.query == nil {
		return nil, NewError(ErrCodeValidation, "no query engine attached to this call")
	}
	return c.query(expr)
}
