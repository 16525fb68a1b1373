package flow

import "sync"

// Graph is the static description of one flow type: every declared
// method, its role and condition, and the derived adjacency views used
// by the engine and by visualization. Built once, immutable, shared
// read-only across all runs of the flow.
type Graph struct {
	name        string
	methods     []*Method          // declaration order
	byName      map[string]*Method // method name → descriptor
	outcomeOf   map[string]string  // outcome token → owning router name
	byEvent     map[string][]string // event (method name or token) → gated methods
	inputSchema []byte

	analyzeOnce sync.Once
	levels      map[string]int
	ancestors   map[string]map[string]bool
	children    map[string][]string
	outDegree   map[string]int
}

// newGraph validates the descriptors and freezes the graph.
func newGraph(name string, methods []*Method, inputSchema []byte) (*Graph, error) {
	if name == "" {
		name = "flow"
	}
	if len(methods) == 0 {
		return nil, NewError(ErrCodeDefinition, "flow has no methods")
	}

	g := &Graph{
		name:        name,
		methods:     methods,
		byName:      make(map[string]*Method, len(methods)),
		outcomeOf:   make(map[string]string),
		byEvent:     make(map[string][]string),
		inputSchema: inputSchema,
	}

	// First pass: register names and router outcome tokens.
	for _, m := range methods {
		if m.Name == "" {
			return nil, NewError(ErrCodeDefinition, "method has empty name")
		}
		if _, exists := g.byName[m.Name]; exists {
			return nil, NewErrorf(ErrCodeDefinition, "duplicate method name: %s", m.Name)
		}
		g.byName[m.Name] = m
	}
	for _, m := range methods {
		if m.Role != RoleRouter {
			continue
		}
		seen := make(map[string]bool, len(m.Outcomes))
		for _, tok := range m.Outcomes {
			if tok == "" {
				return nil, NewError(ErrCodeDefinition, "router outcome token is empty").WithMethod(m.Name)
			}
			if seen[tok] {
				return nil, NewErrorf(ErrCodeDefinition, "duplicate outcome token: %s", tok).WithMethod(m.Name)
			}
			seen[tok] = true
			if _, isMethod := g.byName[tok]; isMethod {
				return nil, NewErrorf(ErrCodeDefinition, "outcome token %q collides with a method name", tok).WithMethod(m.Name)
			}
			if owner, taken := g.outcomeOf[tok]; taken {
				return nil, NewErrorf(ErrCodeDefinition, "outcome token %q already declared by router %s", tok, owner).WithMethod(m.Name)
			}
			g.outcomeOf[tok] = m.Name
		}
	}

	// Second pass: per-method structural checks.
	unconditionalStarts := 0
	for _, m := range methods {
		switch m.Role {
		case RoleStart:
			if m.Condition == nil {
				unconditionalStarts++
			}
			if m.Handler == nil {
				return nil, NewError(ErrCodeDefinition, "start method has no handler").WithMethod(m.Name)
			}
		case RoleListener:
			if m.Handler == nil {
				return nil, NewError(ErrCodeDefinition, "listener has no handler").WithMethod(m.Name)
			}
			if m.Condition == nil {
				return nil, NewError(ErrCodeDefinition, "listener has no condition").WithMethod(m.Name)
			}
		case RoleRouter:
			if m.Router == nil {
				return nil, NewError(ErrCodeDefinition, "router has no router func").WithMethod(m.Name)
			}
			if m.Condition == nil {
				return nil, NewError(ErrCodeDefinition, "router has no condition").WithMethod(m.Name)
			}
		default:
			return nil, NewErrorf(ErrCodeDefinition, "unknown role: %s", m.Role).WithMethod(m.Name)
		}

		if m.Condition != nil {
			if err := m.Condition.validate(m.Name); err != nil {
				return nil, err
			}
			for _, leaf := range m.Condition.Leaves() {
				if leaf == m.Name {
					return nil, NewErrorf(ErrCodeCycleDetected, "condition references the method itself").WithMethod(m.Name)
				}
				if !g.knownEvent(leaf) {
					return nil, NewErrorf(ErrCodeDefinition,
						"condition references undeclared event %q", leaf).WithMethod(m.Name)
				}
				g.byEvent[leaf] = append(g.byEvent[leaf], m.Name)
			}
		}
	}

	if unconditionalStarts == 0 {
		return nil, NewError(ErrCodeDefinition, "flow has no unconditional start method")
	}

	// Cycle detection over backward condition references.
	if err := g.checkCycles(); err != nil {
		return nil, err
	}

	return g, nil
}

// knownEvent reports whether name is a declared method or outcome token.
func (g *Graph) knownEvent(name string) bool {
	if _, ok := g.byName[name]; ok {
		return true
	}
	_, ok := g.outcomeOf[name]
	return ok
}

// Name returns the flow type name.
func (g *Graph) Name() string { return g.name }

// Methods returns the descriptors in declaration order. The slice is
// shared; callers must not mutate it.
func (g *Graph) Methods() []*Method { return g.methods }

// Method returns the descriptor for name, or nil.
func (g *Graph) Method(name string) *Method { return g.byName[name] }

// RouterOf returns the router owning an outcome token, or "".
func (g *Graph) RouterOf(token string) string { return g.outcomeOf[token] }

// ListenersOf returns the methods whose condition references event
// (a method name or a router outcome token), in declaration order.
func (g *Graph) ListenersOf(event string) []string { return g.byEvent[event] }

// InputSchema returns the raw JSON Schema attached at build time, if any.
func (g *Graph) InputSchema() []byte { return g.inputSchema }

// checkCycles rejects graphs where a method is its own ancestor.
// Reported against the first offending method in declaration order.
func (g *Graph) checkCycles() error {
	for _, m := range g.methods {
		anc := g.ancestorsOf(m.Name)
		if anc[m.Name] {
			return NewErrorf(ErrCodeCycleDetected,
				"method is its own ancestor through condition references").WithMethod(m.Name)
		}
	}
	return nil
}
