package diagram

import (
	"fmt"
	"strings"
)

// dotShape maps a node kind to a Graphviz shape.
func dotShape(kind NodeKind) string {
	switch kind {
	case NodeKindStart:
		return "circle"
	case NodeKindRouter:
		return "diamond"
	case NodeKindOutcome:
		return "note"
	default:
		return "box"
	}
}

// RenderDOT renders a Model in Graphviz DOT format. The output can be fed
// to any dot-compatible tool to produce an image.
func RenderDOT(model *Model) string {
	var b strings.Builder

	b.WriteString("digraph flow {\n")
	b.WriteString("  rankdir=TB;\n")
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("  label=%s;\n", dotQuote(model.Title)))
		b.WriteString("  labelloc=t;\n")
	}
	b.WriteString("  node [fontname=\"Helvetica\"];\n\n")

	for _, node := range model.Nodes {
		attrs := []string{
			fmt.Sprintf("label=%s", dotQuote(node.Label)),
			fmt.Sprintf("shape=%s", dotShape(node.Kind)),
		}
		if color := dotColor(node.Status); color != "" {
			attrs = append(attrs, "style=filled", fmt.Sprintf("fillcolor=%s", dotQuote(color)))
		}
		b.WriteString(fmt.Sprintf("  %s [%s];\n", dotQuote(node.ID), strings.Join(attrs, ", ")))
	}

	b.WriteByte('\n')
	for _, edge := range model.Edges {
		if edge.Label != "" {
			b.WriteString(fmt.Sprintf("  %s -> %s [label=%s];\n",
				dotQuote(edge.From), dotQuote(edge.To), dotQuote(edge.Label)))
		} else {
			b.WriteString(fmt.Sprintf("  %s -> %s;\n", dotQuote(edge.From), dotQuote(edge.To)))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func dotColor(status string) string {
	switch status {
	case "done":
		return "#d4edda"
	case "errored":
		return "#f8d7da"
	case "running":
		return "#cce5ff"
	case "eligible":
		return "#fff3cd"
	default:
		return ""
	}
}

func dotQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
