package flow

// CondKind discriminates the three condition variants.
type CondKind string

const (
	CondSingle CondKind = "single"
	CondOr     CondKind = "or"
	CondAnd    CondKind = "and"
)

// Condition is the boolean expression gating a listener or router.
// Leaves are always Single nodes naming a fired event; Or/And nodes may
// nest arbitrarily. Conditions are immutable once attached to a graph;
// build them with On, Or and And rather than constructing the struct.
type Condition struct {
	Kind     CondKind
	Event    string       // set for CondSingle
	Children []*Condition // set for CondOr / CondAnd
}

// On returns a condition satisfied when the named event has fired.
func On(event string) *Condition {
	return &Condition{Kind: CondSingle, Event: event}
}

// Or returns a condition satisfied when any child condition is satisfied.
func Or(children ...*Condition) *Condition {
	return &Condition{Kind: CondOr, Children: children}
}

// And returns a condition satisfied when every child condition is
// satisfied within the same activation window (see the engine's
// pending-AND bookkeeping).
func And(children ...*Condition) *Condition {
	return &Condition{Kind: CondAnd, Children: children}
}

// SatisfiedBy reports whether the condition holds against a set of fired
// event names.
func (c *Condition) SatisfiedBy(fired map[string]bool) bool {
	switch c.Kind {
	case CondSingle:
		return fired[c.Event]
	case CondOr:
		for _, ch := range c.Children {
			if ch.SatisfiedBy(fired) {
				return true
			}
		}
		return false
	case CondAnd:
		for _, ch := range c.Children {
			if !ch.SatisfiedBy(fired) {
				return false
			}
		}
		return true
	}
	return false
}

// Leaves returns the deduplicated event names referenced by the
// condition, in first-appearance order.
func (c *Condition) Leaves() []string {
	seen := make(map[string]bool)
	var out []string
	c.walkLeaves(seen, &out)
	return out
}

func (c *Condition) walkLeaves(seen map[string]bool, out *[]string) {
	if c.Kind == CondSingle {
		if !seen[c.Event] {
			seen[c.Event] = true
			*out = append(*out, c.Event)
		}
		return
	}
	for _, ch := range c.Children {
		ch.walkLeaves(seen, out)
	}
}

// References reports whether event appears as a leaf of the condition.
func (c *Condition) References(event string) bool {
	if c.Kind == CondSingle {
		return c.Event == event
	}
	for _, ch := range c.Children {
		if ch.References(event) {
			return true
		}
	}
	return false
}

// validate rejects malformed conditions: nil nodes, composites with no
// children, leaves with an empty event name.
func (c *Condition) validate(method string) error {
	if c == nil {
		return NewError(ErrCodeDefinition, "nil condition").WithMethod(method)
	}
	switch c.Kind {
	case CondSingle:
		if c.Event == "" {
			return NewError(ErrCodeDefinition, "condition leaf has empty event name").WithMethod(method)
		}
		return nil
	case CondOr, CondAnd:
		if len(c.Children) == 0 {
			return NewErrorf(ErrCodeDefinition, "%s condition has no children", c.Kind).WithMethod(method)
		}
		for _, ch := range c.Children {
			if err := ch.validate(method); err != nil {
				return err
			}
		}
		return nil
	default:
		return NewErrorf(ErrCodeDefinition, "unknown condition kind: %s", c.Kind).WithMethod(method)
	}
}

// String renders the condition in a compact prefix form, e.g.
// and(begin, or(ok, retry)). Used by diagrams and error messages.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	if c.Kind == CondSingle {
		return c.Event
	}
	s := string(c.Kind) + "("
	for i, ch := range c.Children {
		if i > 0 {
			s += ", "
		}
		s += ch.String()
	}
	return s + ")"
}
