package flow

// MethodOption customizes a method declaration.
type MethodOption func(*Method)

// WithGuard attaches a guard expression to the method. The expression is
// evaluated against {inputs, state, outputs, event} each time the
// method's condition becomes satisfied; a non-true result skips that
// activation. Supported engines: "cel", "expr".
func WithGuard(engine, expr string) MethodOption {
	return func(m *Method) {
		m.Guard = &Guard{Engine: engine, Expr: expr}
	}
}

// Builder accumulates method descriptors for one flow type. Declaration
// is plain function calls at construction time; all validation happens in
// Build, which freezes the graph.
type Builder struct {
	name        string
	methods     []*Method
	inputSchema []byte
}

// NewBuilder creates a Builder for a named flow type.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Start declares an unconditional start method: it is scheduled
// immediately on kickoff.
func (b *Builder) Start(name string, fn HandlerFunc, opts ...MethodOption) *Builder {
	return b.add(&Method{Name: name, Role: RoleStart, Handler: fn}, opts)
}

// StartWhen declares a conditional start method. It does not fire on
// kickoff; it becomes eligible only once its condition is satisfied by
// events produced by another start path.
func (b *Builder) StartWhen(name string, cond *Condition, fn HandlerFunc, opts ...MethodOption) *Builder {
	return b.add(&Method{Name: name, Role: RoleStart, Condition: cond, Handler: fn}, opts)
}

// Listen declares a listener gated by cond.
func (b *Builder) Listen(name string, cond *Condition, fn HandlerFunc, opts ...MethodOption) *Builder {
	return b.add(&Method{Name: name, Role: RoleListener, Condition: cond, Handler: fn}, opts)
}

// Route declares a router gated by cond. The outcomes enumerate the
// tokens the router may emit; an empty list declares an open set (any
// emitted token is accepted and fired as an event).
func (b *Builder) Route(name string, cond *Condition, fn RouterFunc, outcomes ...string) *Builder {
	return b.add(&Method{Name: name, Role: RoleRouter, Condition: cond, Router: fn, Outcomes: outcomes}, nil)
}

// RouteWith is Route with method options (guards).
func (b *Builder) RouteWith(name string, cond *Condition, fn RouterFunc, outcomes []string, opts ...MethodOption) *Builder {
	return b.add(&Method{Name: name, Role: RoleRouter, Condition: cond, Router: fn, Outcomes: outcomes}, opts)
}

// InputSchema attaches a JSON Schema validated against kickoff inputs.
func (b *Builder) InputSchema(raw []byte) *Builder {
	b.inputSchema = raw
	return b
}

func (b *Builder) add(m *Method, opts []MethodOption) *Builder {
	for _, opt := range opts {
		opt(m)
	}
	b.methods = append(b.methods, m)
	return b
}

// Build validates the declared methods and freezes them into an
// immutable Graph. Definition problems surface as DEFINITION_ERROR,
// self-referential condition chains as CYCLE_DETECTED.
func (b *Builder) Build() (*Graph, error) {
	return newGraph(b.name, b.methods, b.inputSchema)
}
