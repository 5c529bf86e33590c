package ordering

// dependencyGroup holds every attribute of a type that points at one target.
type dependencyGroup struct {
	target TypeID
	attrs  []AttributeDependency
}

// TypeNode is the per-type record of the graph. Its dependencies are fixed at
// creation; only the cyclic flags inside them change afterwards.
type TypeNode struct {
	id TypeID

	// groups keeps targets in the order the provider first reported them.
	groups []*dependencyGroup
	byType map[TypeID]*dependencyGroup
}

// newTypeNode groups provider references by target type. Self references are
// flagged cyclic immediately since no order can ever satisfy them.
func newTypeNode(id TypeID, refs []Reference) *TypeNode {
	n := &TypeNode{
		id:     id,
		groups: make([]*dependencyGroup, 0, len(refs)),
		byType: make(map[TypeID]*dependencyGroup, len(refs)),
	}

	for _, ref := range refs {
		g, ok := n.byType[ref.Target]
		if !ok {
			g = &dependencyGroup{target: ref.Target}
			n.byType[ref.Target] = g
			n.groups = append(n.groups, g)
		}
		g.attrs = append(g.attrs, AttributeDependency{
			Name:   ref.Attribute,
			Cyclic: ref.Target == id || ref.SelfReferencing,
		})
	}

	return n
}

// ID returns the type identifier of the node.
func (n *TypeNode) ID() TypeID {
	return n.id
}

// DependsOn reports whether the node has at least one reference to target.
func (n *TypeNode) DependsOn(target TypeID) bool {
	g, ok := n.byType[target]
	return ok && len(g.attrs) > 0
}

// Targets returns the referenced types in provider order.
func (n *TypeNode) Targets() []TypeID {
	out := make([]TypeID, 0, len(n.groups))
	for _, g := range n.groups {
		out = append(out, g.target)
	}
	return out
}

// Attributes returns a copy of the attributes that reference target.
func (n *TypeNode) Attributes(target TypeID) []AttributeDependency {
	g, ok := n.byType[target]
	if !ok {
		return nil
	}
	out := make([]AttributeDependency, len(g.attrs))
	copy(out, g.attrs)
	return out
}

func (n *TypeNode) clone() *TypeNode {
	c := &TypeNode{
		id:     n.id,
		groups: make([]*dependencyGroup, len(n.groups)),
		byType: make(map[TypeID]*dependencyGroup, len(n.groups)),
	}
	for i, g := range n.groups {
		cg := &dependencyGroup{target: g.target, attrs: make([]AttributeDependency, len(g.attrs))}
		copy(cg.attrs, g.attrs)
		c.groups[i] = cg
		c.byType[g.target] = cg
	}
	return c
}

// cyclicAttributes returns the distinct names of all cyclic attributes, in
// provider order.
func (n *TypeNode) cyclicAttributes() []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, g := range n.groups {
		for _, a := range g.attrs {
			if a.Cyclic && !seen[a.Name] {
				seen[a.Name] = true
				out = append(out, a.Name)
			}
		}
	}
	return out
}

// setCyclic sets the flag on every attribute that references target.
func (n *TypeNode) setCyclic(target TypeID, cyclic bool) {
	g, ok := n.byType[target]
	if !ok {
		return
	}
	for i := range g.attrs {
		g.attrs[i].Cyclic = cyclic
	}
}

// clearCyclic resets every cyclic flag on the node.
func (n *TypeNode) clearCyclic() {
	for _, g := range n.groups {
		for i := range g.attrs {
			g.attrs[i].Cyclic = false
		}
	}
}

// arena stores every known node in registration order. Other structures
// refer to nodes by their arena index.
type arena struct {
	nodes []*TypeNode
	index map[TypeID]int
}

func newArena() *arena {
	return &arena{
		nodes: make([]*TypeNode, 0),
		index: make(map[TypeID]int),
	}
}

func (a *arena) lookup(id TypeID) (int, bool) {
	idx, ok := a.index[id]
	return idx, ok
}

func (a *arena) push(n *TypeNode) int {
	idx := len(a.nodes)
	a.nodes = append(a.nodes, n)
	a.index[n.id] = idx
	return idx
}

// pop removes the most recently pushed node. It is used to roll back a
// failed Add.
func (a *arena) pop() {
	last := len(a.nodes) - 1
	if last < 0 {
		return
	}
	delete(a.index, a.nodes[last].id)
	a.nodes[last] = nil
	a.nodes = a.nodes[:last]
}
