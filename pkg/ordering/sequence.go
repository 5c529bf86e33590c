package ordering

// orderedSequence is the authoritative creation order. It stores arena
// indices and keeps a side table from arena index to position.
type orderedSequence struct {
	order []int
	pos   []int // arena index -> position, -1 when absent
}

func newOrderedSequence() *orderedSequence {
	return &orderedSequence{
		order: make([]int, 0),
		pos:   make([]int, 0),
	}
}

// sequenceFromOrder builds a sequence over an arena of size n.
func sequenceFromOrder(order []int, n int) *orderedSequence {
	s := &orderedSequence{
		order: order,
		pos:   make([]int, n),
	}
	for i := range s.pos {
		s.pos[i] = -1
	}
	for p, idx := range order {
		s.pos[idx] = p
	}
	return s
}

func (s *orderedSequence) len() int {
	return len(s.order)
}

func (s *orderedSequence) at(p int) int {
	return s.order[p]
}

// position returns the position of an arena index, or -1.
func (s *orderedSequence) position(idx int) int {
	if idx < 0 || idx >= len(s.pos) {
		return -1
	}
	return s.pos[idx]
}

func (s *orderedSequence) grow(idx int) {
	for len(s.pos) <= idx {
		s.pos = append(s.pos, -1)
	}
}

func (s *orderedSequence) append(idx int) {
	s.insert(len(s.order), idx)
}

// insert places idx at position p, shifting everything from p onwards.
func (s *orderedSequence) insert(p, idx int) {
	s.grow(idx)
	s.order = append(s.order, 0)
	copy(s.order[p+1:], s.order[p:])
	s.order[p] = idx
	for i := p; i < len(s.order); i++ {
		s.pos[s.order[i]] = i
	}
}
