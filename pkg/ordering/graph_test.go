package ordering

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// tableProvider resolves dependencies from a fixed table and counts calls.
type tableProvider struct {
	mu    sync.Mutex
	refs  map[TypeID][]Reference
	calls map[TypeID]int
}

func newTableProvider(refs map[TypeID][]Reference) *tableProvider {
	return &tableProvider{refs: refs, calls: make(map[TypeID]int)}
}

func (p *tableProvider) Dependencies(id TypeID) ([]Reference, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[id]++
	return p.refs[id], nil
}

func ref(target TypeID, attr string) Reference {
	return Reference{Target: target, Attribute: attr}
}

func crmProvider() *tableProvider {
	return newTableProvider(map[TypeID][]Reference{
		"account": {ref("contact", "primarycontactid")},
		"contact": {ref("account", "parentcustomerid")},
	})
}

func mustAdd(t *testing.T, g *Graph, ids ...TypeID) {
	t.Helper()
	for _, id := range ids {
		if err := g.Add(id); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}
}

// assertTopological checks every non-cyclic edge between known types.
func assertTopological(t *testing.T, g *Graph) {
	t.Helper()

	snap := g.CreationOrder()
	pos := make(map[TypeID]int, snap.Len())
	for i, e := range snap.Entries {
		if _, dup := pos[e.Type]; dup {
			t.Fatalf("Type %s appears twice in %v", e.Type, snap.Types())
		}
		pos[e.Type] = i
	}

	for _, e := range snap.Entries {
		node, _ := g.Node(e.Type)
		for _, target := range node.Targets() {
			tp, known := pos[target]
			if !known {
				continue
			}
			for _, a := range node.Attributes(target) {
				if a.Cyclic {
					continue
				}
				if tp >= pos[e.Type] {
					t.Errorf("Expected %s before %s (attribute %s), order %v",
						target, e.Type, a.Name, snap.Types())
				}
			}
		}
	}

	del := g.DeletionOrder()
	types := snap.Types()
	if len(del) != len(types) {
		t.Fatalf("Expected deletion order of length %d, got %d", len(types), len(del))
	}
	for i := range types {
		if del[i] != types[len(types)-1-i] {
			t.Fatalf("Deletion order %v is not the reverse of %v", del, types)
		}
	}
}

func TestGraph_SingleType(t *testing.T) {
	g := NewGraph(newTableProvider(nil))
	mustAdd(t, g, "account")

	snap := g.CreationOrder()
	expected := []Entry{{Type: "account", CyclicAttributes: []string{}}}
	if !reflect.DeepEqual(snap.Entries, expected) {
		t.Errorf("Expected %v, got %v", expected, snap.Entries)
	}

	if del := g.DeletionOrder(); !reflect.DeepEqual(del, []TypeID{"account"}) {
		t.Errorf("Expected deletion order [account], got %v", del)
	}
}

func TestGraph_ParentThenChild(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"contact": {ref("account", "parentcustomerid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "account", "contact")

	if got := g.CreationOrder().Types(); !reflect.DeepEqual(got, []TypeID{"account", "contact"}) {
		t.Errorf("Expected creation order [account contact], got %v", got)
	}
	if got := g.DeletionOrder(); !reflect.DeepEqual(got, []TypeID{"contact", "account"}) {
		t.Errorf("Expected deletion order [contact account], got %v", got)
	}
}

func TestGraph_ChildThenParent(t *testing.T) {
	refs := map[TypeID][]Reference{
		"contact": {ref("account", "parentcustomerid")},
	}

	forward := NewGraph(newTableProvider(refs))
	mustAdd(t, forward, "account", "contact")

	reverse := NewGraph(newTableProvider(refs))
	mustAdd(t, reverse, "contact", "account")

	if !reflect.DeepEqual(forward.CreationOrder().Entries, reverse.CreationOrder().Entries) {
		t.Errorf("Expected identical orders, got %v and %v",
			forward.CreationOrder().Types(), reverse.CreationOrder().Types())
	}
}

func TestGraph_MutualCycle(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"a": {ref("b", "bid")},
		"b": {ref("a", "aid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "a", "b")

	snap := g.CreationOrder()
	if snap.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %v", snap.Types())
	}

	aCyclic, _ := snap.CyclicAttributes("a")
	bCyclic, _ := snap.CyclicAttributes("b")
	flagged := 0
	if reflect.DeepEqual(aCyclic, []string{"bid"}) {
		flagged++
	}
	if reflect.DeepEqual(bCyclic, []string{"aid"}) {
		flagged++
	}
	if flagged != 1 || len(aCyclic)+len(bCyclic) != 1 {
		t.Errorf("Expected exactly one cyclic attribute, got a=%v b=%v", aCyclic, bCyclic)
	}

	assertTopological(t, g)
}

func TestGraph_SelfCycle(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"self": {ref("self", "parentself")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "self")

	expected := []Entry{{Type: "self", CyclicAttributes: []string{"parentself"}}}
	if got := g.CreationOrder().Entries; !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestGraph_SelfCycleSurvivesRebuild(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"account": {ref("account", "parentaccountid"), ref("contact", "primarycontactid")},
		"contact": {ref("account", "parentcustomerid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "account", "contact")

	attrs, ok := g.CreationOrder().CyclicAttributes("account")
	if !ok {
		t.Fatal("Expected account in creation order")
	}
	found := false
	for _, a := range attrs {
		if a == "parentaccountid" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected parentaccountid to stay cyclic after rebuild, got %v", attrs)
	}
	assertTopological(t, g)
}

func TestGraph_Add_Idempotent(t *testing.T) {
	p := crmProvider()
	g := NewGraph(p)
	mustAdd(t, g, "account")

	version := g.Version()
	logLen := len(g.Log())

	mustAdd(t, g, "account")

	if g.Version() != version {
		t.Errorf("Expected version %d, got %d", version, g.Version())
	}
	if len(g.Log()) != logLen {
		t.Errorf("Expected log length %d, got %d", logLen, len(g.Log()))
	}
	if g.Len() != 1 {
		t.Errorf("Expected 1 type, got %d", g.Len())
	}
	if p.calls["account"] != 1 {
		t.Errorf("Expected provider to be called once, got %d", p.calls["account"])
	}
}

func TestGraph_CreationOrder_Cached(t *testing.T) {
	g := NewGraph(crmProvider())
	mustAdd(t, g, "account", "contact")

	first := g.CreationOrder()
	second := g.CreationOrder()
	if first != second {
		t.Error("Expected the same snapshot between writes")
	}

	mustAdd(t, g, "lead")
	third := g.CreationOrder()
	if third == first {
		t.Error("Expected a new snapshot after a structural change")
	}
	if third.Version != g.Version() {
		t.Errorf("Expected snapshot version %d, got %d", g.Version(), third.Version)
	}
}

func TestGraph_SnapshotImmutableAcrossAdds(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"contact": {ref("account", "parentcustomerid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "contact")

	before := g.CreationOrder()
	mustAdd(t, g, "account")

	if !reflect.DeepEqual(before.Types(), []TypeID{"contact"}) {
		t.Errorf("Expected old snapshot to stay [contact], got %v", before.Types())
	}
}

func TestGraph_UnknownTargetsIgnored(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"contact": {ref("account", "parentcustomerid"), ref("systemuser", "ownerid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "contact")

	if got := g.CreationOrder().Types(); !reflect.DeepEqual(got, []TypeID{"contact"}) {
		t.Errorf("Expected [contact], got %v", got)
	}
	if g.Has("account") {
		t.Error("Expected referenced type not to be added implicitly")
	}
}

func TestGraph_MultipleDependentsFallBackToRebuild(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"contact": {ref("account", "parentcustomerid")},
		"lead":    {ref("account", "parentaccountid")},
	})
	rec := &countingRecorder{outcomes: make(map[string]int)}
	g := NewGraph(p, WithRecorder(rec))
	mustAdd(t, g, "contact", "lead", "account")

	if got := g.CreationOrder().Types(); got[0] != "account" {
		t.Errorf("Expected account first, got %v", got)
	}
	if rec.outcomes[OutcomeRebuilt] != 1 {
		t.Errorf("Expected one rebuild, got %v", rec.outcomes)
	}
	assertTopological(t, g)
}

func TestGraph_InsertedBeforeDependent(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"contact": {ref("account", "parentcustomerid")},
	})
	rec := &countingRecorder{outcomes: make(map[string]int)}
	g := NewGraph(p, WithRecorder(rec))
	mustAdd(t, g, "lead", "contact", "account")

	if got := g.CreationOrder().Types(); !reflect.DeepEqual(got, []TypeID{"lead", "account", "contact"}) {
		t.Errorf("Expected [lead account contact], got %v", got)
	}
	if rec.outcomes[OutcomeInsertedBefore] != 1 || rec.outcomes[OutcomeRebuilt] != 0 {
		t.Errorf("Expected one cheap insert before a dependent, got %v", rec.outcomes)
	}
}

func TestGraph_Position(t *testing.T) {
	g := NewGraph(crmProvider())
	mustAdd(t, g, "lead", "account")

	if p, ok := g.Position("account"); !ok || p != 1 {
		t.Errorf("Expected account at position 1, got %d (%v)", p, ok)
	}
	if _, ok := g.Position("missing"); ok {
		t.Error("Expected unknown type to have no position")
	}
}

func TestGraph_ProviderFailureLeavesGraphUnchanged(t *testing.T) {
	boom := errors.New("metadata unavailable")
	p := ProviderFunc(func(id TypeID) ([]Reference, error) {
		if id == "broken" {
			return nil, boom
		}
		return nil, nil
	})
	g := NewGraph(p)
	mustAdd(t, g, "account")
	version := g.Version()

	err := g.Add("broken")
	if err == nil {
		t.Fatal("Expected an error from a failing provider")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped provider error, got %v", err)
	}
	if !IsPermanent(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
	var oe *Error
	if !errors.As(err, &oe) || oe.Code != ErrCodeProviderFailed || oe.Type != "broken" {
		t.Errorf("Expected provider failure for broken, got %#v", err)
	}
	if g.Has("broken") || g.Version() != version {
		t.Error("Expected graph to be unchanged after a failed Add")
	}
}

func TestGraph_CheapInsertKeepsCyclicFlags(t *testing.T) {
	p := newTableProvider(map[TypeID][]Reference{
		"a": {ref("b", "bid")},
		"b": {ref("a", "aid")},
		"c": {ref("a", "caid"), ref("b", "cbid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "a", "b", "c")

	total := 0
	for _, e := range g.CreationOrder().Entries {
		total += len(e.CyclicAttributes)
	}
	if total != 1 {
		t.Errorf("Expected exactly one cyclic attribute, got %v", g.CreationOrder().Entries)
	}
	assertTopological(t, g)
}

func TestGraph_CyclicFlagsRecomputedOnRebuild(t *testing.T) {
	// Once y is known, z reaches the a<->b cycle through b instead of a,
	// so the rebuild enters the cycle from the other side.
	p := newTableProvider(map[TypeID][]Reference{
		"z": {ref("y", "zyid")},
		"a": {ref("b", "bid")},
		"b": {ref("a", "aid")},
		"y": {ref("b", "ybid")},
	})
	g := NewGraph(p)
	mustAdd(t, g, "z", "a", "b")

	if attrs, _ := g.CreationOrder().CyclicAttributes("b"); !reflect.DeepEqual(attrs, []string{"aid"}) {
		t.Fatalf("Expected b.aid cyclic before y is added, got %v", attrs)
	}

	mustAdd(t, g, "y")

	snap := g.CreationOrder()
	if attrs, _ := snap.CyclicAttributes("b"); len(attrs) != 0 {
		t.Errorf("Expected b.aid to be cleared, got %v", attrs)
	}
	if attrs, _ := snap.CyclicAttributes("a"); !reflect.DeepEqual(attrs, []string{"bid"}) {
		t.Errorf("Expected a.bid cyclic, got %v", attrs)
	}
	if got := snap.Types(); !reflect.DeepEqual(got, []TypeID{"a", "b", "y", "z"}) {
		t.Errorf("Expected [a b y z], got %v", got)
	}
	assertTopological(t, g)
}

func TestGraph_ConcurrentAdd(t *testing.T) {
	refs := make(map[TypeID][]Reference)
	var ids []TypeID
	for i := 0; i < 40; i++ {
		id := TypeID(fmt.Sprintf("entity%02d", i))
		ids = append(ids, id)
		if i > 0 {
			refs[id] = append(refs[id], ref(ids[i-1], "previousid"))
		}
		if i > 2 {
			refs[id] = append(refs[id], ref(ids[i/2], "halfid"))
		}
	}
	p := newTableProvider(refs)
	g := NewGraph(p)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := range ids {
				id := ids[(i*7+offset)%len(ids)]
				if err := g.Add(id); err != nil {
					t.Errorf("Add(%s) failed: %v", id, err)
				}
				_ = g.CreationOrder()
			}
		}(w)
	}
	wg.Wait()

	if g.Len() != len(ids) {
		t.Fatalf("Expected %d types, got %d", len(ids), g.Len())
	}
	for _, id := range ids {
		if p.calls[id] != 1 {
			t.Errorf("Expected one provider call for %s, got %d", id, p.calls[id])
		}
	}
	assertTopological(t, g)
}

func TestGraph_LogDescribesDecisions(t *testing.T) {
	g := NewGraph(crmProvider())
	mustAdd(t, g, "account", "contact")

	log := g.Log()
	if len(log) == 0 {
		t.Fatal("Expected trace lines")
	}
	log[0] = "mutated"
	if g.Log()[0] == "mutated" {
		t.Error("Expected Log to return a copy")
	}
}

type countingRecorder struct {
	mu        sync.Mutex
	outcomes  map[string]int
	snapshots int
	types     int
}

func (r *countingRecorder) ObserveAdd(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *countingRecorder) ObserveSnapshot(int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
}

func (r *countingRecorder) SetTypes(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = n
}

func TestGraph_Recorder(t *testing.T) {
	rec := &countingRecorder{outcomes: make(map[string]int)}
	g := NewGraph(crmProvider(), WithRecorder(rec))
	mustAdd(t, g, "account", "account")
	g.CreationOrder()
	g.CreationOrder()

	if rec.outcomes[OutcomeAppended] != 1 || rec.outcomes[OutcomeKnown] != 1 {
		t.Errorf("Unexpected outcomes: %v", rec.outcomes)
	}
	if rec.snapshots != 1 {
		t.Errorf("Expected 1 snapshot refresh, got %d", rec.snapshots)
	}
	if rec.types != 1 {
		t.Errorf("Expected 1 registered type, got %d", rec.types)
	}
}
