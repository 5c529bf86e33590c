package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/fakexrm/fakexrm/pkg/ordering"
	"github.com/fakexrm/fakexrm/pkg/telemetry"
)

func crmGraph() *ordering.Graph {
	table := map[ordering.TypeID][]ordering.Reference{
		"contact":     {{Target: "account", Attribute: "parentcustomerid"}},
		"opportunity": {{Target: "account", Attribute: "parentaccountid"}, {Target: "contact", Attribute: "parentcontactid"}},
		"team":        {{Target: "systemuser", Attribute: "administratorid"}},
		"systemuser":  {{Target: "team", Attribute: "defaultteamid"}},
	}
	return ordering.NewGraph(ordering.ProviderFunc(func(id ordering.TypeID) ([]ordering.Reference, error) {
		return table[id], nil
	}))
}

type recordingDeleter struct {
	mu      sync.Mutex
	deleted []Record
	fail    map[uuid.UUID]error
}

func (d *recordingDeleter) Delete(_ context.Context, typ ordering.TypeID, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[id]; err != nil {
		return err
	}
	d.deleted = append(d.deleted, Record{Type: typ, ID: id})
	return nil
}

func (d *recordingDeleter) types() []ordering.TypeID {
	out := make([]ordering.TypeID, len(d.deleted))
	for i, r := range d.deleted {
		out[i] = r.Type
	}
	return out
}

func TestTracker_TrackRegistersType(t *testing.T) {
	g := crmGraph()
	tr := NewTracker(g)

	if _, err := tr.TrackNew("contact"); err != nil {
		t.Fatalf("TrackNew failed: %v", err)
	}
	if !g.Has("contact") {
		t.Error("Expected contact to be registered with the graph")
	}
	if tr.Len() != 1 {
		t.Errorf("Expected 1 tracked record, got %d", tr.Len())
	}
}

func TestTracker_TrackEmptyType(t *testing.T) {
	tr := NewTracker(crmGraph())
	err := tr.Track("", uuid.New())
	if err == nil {
		t.Fatal("Expected error for empty type")
	}
	if !ordering.IsPermanent(err) {
		t.Errorf("Expected permanent error, got %v", err)
	}
}

func TestTracker_TrackProviderFailure(t *testing.T) {
	boom := errors.New("metadata unavailable")
	g := ordering.NewGraph(ordering.ProviderFunc(func(ordering.TypeID) ([]ordering.Reference, error) {
		return nil, boom
	}))
	tr := NewTracker(g)

	if _, err := tr.TrackNew("account"); !errors.Is(err, boom) {
		t.Fatalf("Expected provider error, got %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("Expected no tracked records, got %d", tr.Len())
	}
}

func TestTracker_CleanupOrder(t *testing.T) {
	tr := NewTracker(crmGraph())

	account1, _ := tr.TrackNew("account")
	opp, _ := tr.TrackNew("opportunity")
	contact, _ := tr.TrackNew("contact")
	account2, _ := tr.TrackNew("account")

	expectedIDs := []uuid.UUID{opp, contact, account2, account1}
	records := tr.Records()
	for i, rec := range records {
		if rec.ID != expectedIDs[i] {
			t.Errorf("Records()[%d]: expected %s, got %s %s", i, expectedIDs[i], rec.Type, rec.ID)
		}
	}

	d := &recordingDeleter{}
	if err := tr.Cleanup(context.Background(), d); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	expected := []ordering.TypeID{"opportunity", "contact", "account", "account"}
	if got := d.types(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected deletion order %v, got %v", expected, got)
	}
	if d.deleted[2].ID != account2 {
		t.Error("Expected newest account to be deleted first")
	}
	if tr.Len() != 0 {
		t.Errorf("Expected no tracked records after cleanup, got %d", tr.Len())
	}
}

func TestTracker_CleanupKeepsFailures(t *testing.T) {
	tel := telemetry.Nop()
	tr := NewTracker(crmGraph(), WithTelemetry(tel))

	account, _ := tr.TrackNew("account")
	contact, _ := tr.TrackNew("contact")

	denied := errors.New("access denied")
	d := &recordingDeleter{fail: map[uuid.UUID]error{contact: denied}}

	err := tr.Cleanup(context.Background(), d)
	if !errors.Is(err, denied) {
		t.Fatalf("Expected joined delete error, got %v", err)
	}

	remaining := tr.Records()
	if len(remaining) != 1 || remaining[0].ID != contact {
		t.Errorf("Expected only the failed contact to remain, got %v", remaining)
	}
	if len(d.deleted) != 1 || d.deleted[0].ID != account {
		t.Errorf("Expected account to be deleted, got %v", d.deleted)
	}

	d.fail = nil
	if err := tr.Cleanup(context.Background(), d); err != nil {
		t.Fatalf("Retry cleanup failed: %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("Expected no tracked records after retry, got %d", tr.Len())
	}
}

func TestTracker_CleanupCancelled(t *testing.T) {
	tr := NewTracker(crmGraph())
	tr.TrackNew("account")
	tr.TrackNew("contact")

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	d := DeleterFunc(func(context.Context, ordering.TypeID, uuid.UUID) error {
		calls++
		cancel()
		return nil
	})

	err := tr.Cleanup(ctx, d)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 delete before cancellation, got %d", calls)
	}
	if tr.Len() != 1 {
		t.Errorf("Expected 1 record left, got %d", tr.Len())
	}
}

func TestTracker_ConcurrentTrack(t *testing.T) {
	tr := NewTracker(crmGraph())
	types := []ordering.TypeID{"opportunity", "contact", "account", "team", "systemuser"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := tr.TrackNew(types[i%len(types)]); err != nil {
				t.Errorf("TrackNew failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if tr.Len() != 50 {
		t.Fatalf("Expected 50 tracked records, got %d", tr.Len())
	}

	d := &recordingDeleter{}
	if err := tr.Cleanup(context.Background(), d); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	seen := make(map[ordering.TypeID]int)
	for i, typ := range d.types() {
		seen[typ] = i
	}
	if seen["opportunity"] > seen["contact"] || seen["contact"] > seen["account"] {
		t.Errorf("Expected children deleted before parents, got %v", d.types())
	}
}

func TestDeletionSequence_LateTypes(t *testing.T) {
	records := []Record{
		{Type: "late", ID: uuid.New(), seq: 1},
		{Type: "account", ID: uuid.New(), seq: 2},
	}
	out := deletionSequence([]ordering.TypeID{"account"}, records)
	if len(out) != 2 || out[0].Type != "account" || out[1].Type != "late" {
		t.Errorf("Expected account then late, got %v", out)
	}
}
