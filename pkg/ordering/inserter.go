package ordering

// placement describes where the cheap path put a new node.
type placement struct {
	outcome  string
	position int
	anchor   TypeID // neighbour the node was placed relative to, if any
	reason   string // why the cheap path gave up, when outcome is empty
}

// tryInsert places the node at arena index idx into seq without touching the
// relative order of existing nodes. It returns ok=false when it cannot prove
// a safe slot, in which case seq is left unchanged and a full rebuild is
// required.
//
// Both scans keep the last match while walking front to back.
func tryInsert(a *arena, seq *orderedSequence, idx int) (placement, bool) {
	n := a.nodes[idx]

	lastDependOn, blockerOfN := -1, -1
	for p := 0; p < seq.len(); p++ {
		other := a.nodes[seq.at(p)]
		if n.DependsOn(other.id) {
			lastDependOn = p
		}
		if other.DependsOn(n.id) {
			blockerOfN = p
		}
	}

	if lastDependOn < 0 {
		if blockerOfN < 0 {
			seq.append(idx)
			return placement{outcome: OutcomeAppended, position: seq.len() - 1}, true
		}

		// Every dependent must end up after n, not only the last one.
		if p := firstDependentBefore(a, seq, n.id, blockerOfN); p >= 0 {
			return placement{reason: "dependent " + string(a.nodes[seq.at(p)].id) +
				" precedes " + string(a.nodes[seq.at(blockerOfN)].id)}, false
		}

		anchor := a.nodes[seq.at(blockerOfN)].id
		seq.insert(blockerOfN, idx)
		return placement{outcome: OutcomeInsertedBefore, position: blockerOfN, anchor: anchor}, true
	}

	dep := a.nodes[seq.at(lastDependOn)]
	if dep.DependsOn(n.id) {
		return placement{reason: string(dep.id) + " depends back on " + string(n.id)}, false
	}
	if p := firstDependentBefore(a, seq, n.id, lastDependOn); p >= 0 {
		return placement{reason: "dependent " + string(a.nodes[seq.at(p)].id) +
			" precedes dependency " + string(dep.id)}, false
	}

	seq.insert(lastDependOn+1, idx)
	return placement{outcome: OutcomeInsertedAfter, position: lastDependOn + 1, anchor: dep.id}, true
}

// firstDependentBefore returns the first position strictly before limit whose
// node depends on target, or -1.
func firstDependentBefore(a *arena, seq *orderedSequence, target TypeID, limit int) int {
	for p := 0; p < limit; p++ {
		if a.nodes[seq.at(p)].DependsOn(target) {
			return p
		}
	}
	return -1
}
