package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindListener NodeKind = "listener"
	NodeKindRouter   NodeKind = "router"
	NodeKindOutcome  NodeKind = "outcome" // router outcome token pseudo-node
)

// Model is the intermediate representation used by all renderers.
type Model struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents one method (or one router outcome token).
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status string // optional run-status overlay, see Annotate
}

// Edge is one condition reference or router outcome emission.
type Edge struct {
	From  string
	To    string
	Label string
}

func (m *Model) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Annotate overlays per-method run statuses onto the model's nodes.
// Unknown names are ignored, so callers can pass an engine status map
// directly.
func Annotate(m *Model, statuses map[string]string) {
	for _, n := range m.Nodes {
		if s, ok := statuses[n.ID]; ok {
			n.Status = s
		}
	}
}
