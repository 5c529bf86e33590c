package ordering

import (
	"reflect"
	"testing"
)

// arenaWithOrder builds an arena whose sequence holds every node except the
// last one, in registration order.
func arenaWithOrder(ids []TypeID, refs map[TypeID][]Reference) (*arena, *orderedSequence) {
	a := buildArena(ids, refs)
	seq := newOrderedSequence()
	for idx := 0; idx < len(ids)-1; idx++ {
		seq.append(idx)
	}
	return a, seq
}

func seqIDs(a *arena, seq *orderedSequence) []TypeID {
	return orderIDs(a, seq.order)
}

func TestTryInsert(t *testing.T) {
	tests := []struct {
		name     string
		ids      []TypeID
		refs     map[TypeID][]Reference
		ok       bool
		outcome  string
		expected []TypeID
	}{
		{
			name:     "empty sequence appends",
			ids:      []TypeID{"account"},
			ok:       true,
			outcome:  OutcomeAppended,
			expected: []TypeID{"account"},
		},
		{
			name:     "unrelated type appends",
			ids:      []TypeID{"account", "lead"},
			ok:       true,
			outcome:  OutcomeAppended,
			expected: []TypeID{"account", "lead"},
		},
		{
			name: "child goes after its last dependency",
			ids:  []TypeID{"account", "systemuser", "lead", "contact"},
			refs: map[TypeID][]Reference{
				"contact": {ref("systemuser", "ownerid"), ref("account", "parentcustomerid")},
			},
			ok:       true,
			outcome:  OutcomeInsertedAfter,
			expected: []TypeID{"account", "systemuser", "contact", "lead"},
		},
		{
			name: "parent goes before its dependent",
			ids:  []TypeID{"lead", "contact", "account"},
			refs: map[TypeID][]Reference{
				"contact": {ref("account", "parentcustomerid")},
			},
			ok:       true,
			outcome:  OutcomeInsertedBefore,
			expected: []TypeID{"lead", "account", "contact"},
		},
		{
			name: "earlier dependent blocks insert before last dependent",
			ids:  []TypeID{"contact", "lead", "account"},
			refs: map[TypeID][]Reference{
				"contact": {ref("account", "parentcustomerid")},
				"lead":    {ref("account", "parentaccountid")},
			},
			ok:       false,
			expected: []TypeID{"contact", "lead"},
		},
		{
			name: "reverse edge from last dependency fails",
			ids:  []TypeID{"account", "contact"},
			refs: map[TypeID][]Reference{
				"account": {ref("contact", "primarycontactid")},
				"contact": {ref("account", "parentcustomerid")},
			},
			ok:       false,
			expected: []TypeID{"account"},
		},
		{
			name: "dependent before last dependency fails",
			ids:  []TypeID{"task", "account", "contact"},
			refs: map[TypeID][]Reference{
				"task":    {ref("contact", "regardingobjectid")},
				"contact": {ref("account", "parentcustomerid")},
			},
			ok:       false,
			expected: []TypeID{"task", "account"},
		},
		{
			name: "dependent after last dependency is fine",
			ids:  []TypeID{"account", "task", "contact"},
			refs: map[TypeID][]Reference{
				"task":    {ref("contact", "regardingobjectid")},
				"contact": {ref("account", "parentcustomerid")},
			},
			ok:       true,
			outcome:  OutcomeInsertedAfter,
			expected: []TypeID{"account", "contact", "task"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, seq := arenaWithOrder(tt.ids, tt.refs)
			p, ok := tryInsert(a, seq, len(tt.ids)-1)

			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v (reason %q)", tt.ok, ok, p.reason)
			}
			if ok && p.outcome != tt.outcome {
				t.Errorf("Expected outcome %s, got %s", tt.outcome, p.outcome)
			}
			if !ok && p.reason == "" {
				t.Error("Expected a reason for a failed insert")
			}
			if got := seqIDs(a, seq); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			for p, idx := range seq.order {
				if seq.position(idx) != p {
					t.Errorf("Position table out of sync at %d", p)
				}
			}
		})
	}
}
