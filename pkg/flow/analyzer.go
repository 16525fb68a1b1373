package flow

// Analysis views over a built Graph. Pure and deterministic; computed
// once per Graph and memoized, so repeated calls return identical maps.
// Used for validation and visualization layout, never for run-time
// gating.

// Levels returns the dependency depth of every method. Start methods
// sit at level 0. A conditioned method's level is one more than the
// maximum level among the events its condition references; methods
// gated on a router outcome token land one level below the router.
func (g *Graph) Levels() map[string]int {
	g.analyze()
	return g.levels
}

// Ancestors returns, for each method, the set of methods reachable by
// following condition references backward. Outcome tokens resolve to
// their owning router.
func (g *Graph) Ancestors() map[string]map[string]bool {
	g.analyze()
	return g.ancestors
}

// Children returns the forward adjacency: for each method, the methods
// whose condition references it, and for routers also the methods gated
// on each outcome token.
func (g *Graph) Children() map[string][]string {
	g.analyze()
	return g.children
}

// OutDegree returns the number of outgoing edges per method.
func (g *Graph) OutDegree() map[string]int {
	g.analyze()
	return g.outDegree
}

func (g *Graph) analyze() {
	g.analyzeOnce.Do(func() {
		g.levels = g.computeLevels()
		g.ancestors = make(map[string]map[string]bool, len(g.methods))
		for _, m := range g.methods {
			g.ancestors[m.Name] = g.ancestorsOf(m.Name)
		}
		g.children = make(map[string][]string, len(g.methods))
		g.outDegree = make(map[string]int, len(g.methods))
		for _, m := range g.methods {
			kids := g.childrenOf(m)
			g.children[m.Name] = kids
			g.outDegree[m.Name] = len(kids)
		}
	})
}

// computeLevels assigns each method its depth. The graph is already
// known acyclic, so the recursion terminates.
func (g *Graph) computeLevels() map[string]int {
	memo := make(map[string]int, len(g.methods))

	var levelOf func(name string) int
	levelOf = func(name string) int {
		if lvl, ok := memo[name]; ok {
			return lvl
		}
		m := g.byName[name]
		if m == nil || m.Condition == nil {
			memo[name] = 0
			return 0
		}
		max := 0
		for _, leaf := range m.Condition.Leaves() {
			parent := leaf
			if router := g.outcomeOf[leaf]; router != "" {
				parent = router
			}
			candidate := levelOf(parent)
			if candidate > max {
				max = candidate
			}
		}
		lvl := max + 1
		memo[name] = lvl
		return lvl
	}

	for _, m := range g.methods {
		levelOf(m.Name)
	}
	return memo
}

// ancestorsOf walks condition references backward from name. Safe on
// graphs that have not passed the cycle check; the visited set bounds
// the walk.
func (g *Graph) ancestorsOf(name string) map[string]bool {
	anc := make(map[string]bool)
	var visit func(n string)
	visit = func(n string) {
		m := g.byName[n]
		if m == nil || m.Condition == nil {
			return
		}
		for _, leaf := range m.Condition.Leaves() {
			parent := leaf
			if router := g.outcomeOf[leaf]; router != "" {
				parent = router
			}
			if anc[parent] {
				continue
			}
			anc[parent] = true
			visit(parent)
		}
	}
	visit(name)
	return anc
}

func (g *Graph) childrenOf(m *Method) []string {
	seen := make(map[string]bool)
	var kids []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				kids = append(kids, n)
			}
		}
	}
	add(g.byEvent[m.Name])
	if m.Role == RoleRouter {
		for _, tok := range m.Outcomes {
			add(g.byEvent[tok])
		}
	}
	return kids
}
