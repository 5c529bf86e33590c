package ordering

// cyclicEdge names every attribute on the node at arena index owner that
// points at target.
type cyclicEdge struct {
	owner  int
	target TypeID
}

// rebuildResult is the outcome of a full recompute. Nothing in it is applied
// to the graph until the whole rebuild has succeeded.
type rebuildResult struct {
	order  []int
	cyclic []cyclicEdge
}

// rebuildState is the scratch state of one rebuild.
type rebuildState struct {
	a          *arena
	inProgress []bool
	placed     []bool
	stack      []int
	result     rebuildResult
}

// rebuild recomputes the creation order over every node of the arena with a
// depth-first, dependencies-first visit in registration order.
//
// A dependency on a node that is still on the active path is a back edge: the
// attributes behind it are flagged cyclic and the traversal does not follow
// it. Re-entering a node that is still in progress is an unresolvable cycle.
func rebuild(a *arena) (*rebuildResult, error) {
	st := &rebuildState{
		a:          a,
		inProgress: make([]bool, len(a.nodes)),
		placed:     make([]bool, len(a.nodes)),
		stack:      make([]int, 0),
		result: rebuildResult{
			order:  make([]int, 0, len(a.nodes)),
			cyclic: make([]cyclicEdge, 0),
		},
	}

	for idx := range a.nodes {
		if st.placed[idx] {
			continue
		}
		if err := st.visit(idx); err != nil {
			return nil, err
		}
	}

	return &st.result, nil
}

func (st *rebuildState) visit(idx int) error {
	if st.inProgress[idx] {
		return st.cycleError(idx)
	}
	if st.placed[idx] {
		return nil
	}

	st.inProgress[idx] = true
	st.stack = append(st.stack, idx)

	node := st.a.nodes[idx]
	for _, g := range node.groups {
		if len(g.attrs) == 0 {
			continue
		}
		t, ok := st.a.lookup(g.target)
		if !ok {
			// Not added yet; ignored until it is.
			continue
		}
		if st.inProgress[t] {
			st.result.cyclic = append(st.result.cyclic, cyclicEdge{owner: idx, target: g.target})
			continue
		}
		if err := st.visit(t); err != nil {
			return err
		}
	}

	st.inProgress[idx] = false
	st.stack = st.stack[:len(st.stack)-1]
	st.placed[idx] = true
	st.result.order = append(st.result.order, idx)
	return nil
}

func (st *rebuildState) cycleError(idx int) error {
	path := make([]TypeID, 0, len(st.stack)+1)
	for _, s := range st.stack {
		path = append(path, st.a.nodes[s].id)
	}
	path = append(path, st.a.nodes[idx].id)
	return &CyclicDependencyError{
		Type: st.a.nodes[idx].id,
		Path: path,
	}
}

// apply resets every cyclic flag in the arena and sets the ones found by the
// rebuild.
func (r *rebuildResult) apply(a *arena) {
	for _, n := range a.nodes {
		n.clearCyclic()
	}
	for _, e := range r.cyclic {
		a.nodes[e.owner].setCyclic(e.target, true)
	}
}
