package ordering

// Entry is one position of the creation order.
type Entry struct {
	// Type is the type identifier.
	Type TypeID `json:"type"`

	// CyclicAttributes lists the distinct attributes of the type that were
	// flagged cyclic. They must be populated after the referenced records
	// exist.
	CyclicAttributes []string `json:"cyclic_attributes"`
}

// Snapshot is an immutable, versioned projection of the creation order.
// Callers must not modify the slices it exposes.
type Snapshot struct {
	// Version is the graph version the snapshot was built from.
	Version uint64 `json:"version"`

	// Entries is the creation order, parents first.
	Entries []Entry `json:"entries"`

	deletion []TypeID
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.Entries)
}

// Types returns the creation order projected to type identifiers.
func (s *Snapshot) Types() []TypeID {
	out := make([]TypeID, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Type
	}
	return out
}

// CyclicAttributes returns the cyclic attributes of id and whether id is part
// of the snapshot.
func (s *Snapshot) CyclicAttributes(id TypeID) ([]string, bool) {
	for _, e := range s.Entries {
		if e.Type == id {
			return e.CyclicAttributes, true
		}
	}
	return nil, false
}

// project builds a snapshot of seq.
func project(a *arena, seq *orderedSequence, version uint64) *Snapshot {
	s := &Snapshot{
		Version:  version,
		Entries:  make([]Entry, seq.len()),
		deletion: make([]TypeID, seq.len()),
	}
	for p := 0; p < seq.len(); p++ {
		n := a.nodes[seq.at(p)]
		s.Entries[p] = Entry{
			Type:             n.id,
			CyclicAttributes: n.cyclicAttributes(),
		}
		s.deletion[seq.len()-1-p] = n.id
	}
	return s
}
