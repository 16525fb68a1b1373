package diagram

import (
	"github.com/cascadehq/cascade/pkg/flow"
)

// Build constructs a Model from a flow graph. Methods become nodes in
// declaration order; every declared router outcome token becomes an
// outcome pseudo-node between the router and the listeners keyed to it.
// Levels come from the graph analyzer, so layout mirrors dependency
// depth.
func Build(g *flow.Graph) *Model {
	model := &Model{Title: g.Name()}

	levels := g.Levels()
	maxLevel := 0

	for _, m := range g.Methods() {
		model.Nodes = append(model.Nodes, &Node{
			ID:    m.Name,
			Label: m.Name,
			Kind:  roleKind(m.Role),
		})
		if levels[m.Name] > maxLevel {
			maxLevel = levels[m.Name]
		}
	}

	// Outcome pseudo-nodes share their router's level row.
	for _, m := range g.Methods() {
		if m.Role != flow.RoleRouter {
			continue
		}
		for _, tok := range m.Outcomes {
			model.Nodes = append(model.Nodes, &Node{
				ID:    tok,
				Label: tok,
				Kind:  NodeKindOutcome,
			})
			model.Edges = append(model.Edges, Edge{From: m.Name, To: tok})
		}
	}

	// Condition reference edges, labeled with the composite kind when
	// the condition is not a single leaf.
	for _, m := range g.Methods() {
		if m.Condition == nil {
			continue
		}
		label := ""
		if m.Condition.Kind != flow.CondSingle {
			label = string(m.Condition.Kind)
		}
		for _, leaf := range m.Condition.Leaves() {
			model.Edges = append(model.Edges, Edge{From: leaf, To: m.Name, Label: label})
		}
	}

	// Level rows in declaration order within each row.
	rows := make([][]string, maxLevel+1)
	for _, m := range g.Methods() {
		lvl := levels[m.Name]
		rows[lvl] = append(rows[lvl], m.Name)
		if m.Role == flow.RoleRouter {
			rows[lvl] = append(rows[lvl], m.Outcomes...)
		}
	}
	model.Levels = rows

	return model
}

func roleKind(role flow.Role) NodeKind {
	switch role {
	case flow.RoleStart:
		return NodeKindStart
	case flow.RoleRouter:
		return NodeKindRouter
	default:
		return NodeKindListener
	}
}
