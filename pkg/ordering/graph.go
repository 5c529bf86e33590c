package ordering

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Graph maintains a creation order over types connected by references. It is
// safe for concurrent use and only ever grows.
type Graph struct {
	// mu guards every field below.
	mu sync.RWMutex

	provider TypeDependencyProvider
	nodes    *arena
	seq      *orderedSequence

	// version advances on every structural change.
	version  uint64
	snapshot *Snapshot

	// trace is the append-only diagnostic log.
	trace []string

	logger   zerolog.Logger
	recorder Recorder
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger mirrors the diagnostic log to logger at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithRecorder reports graph activity to r.
func WithRecorder(r Recorder) Option {
	return func(g *Graph) {
		if r != nil {
			g.recorder = r
		}
	}
}

// NewGraph creates an empty graph that resolves dependencies through provider.
func NewGraph(provider TypeDependencyProvider, opts ...Option) *Graph {
	g := &Graph{
		provider: provider,
		nodes:    newArena(),
		seq:      newOrderedSequence(),
		trace:    make([]string, 0),
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Add registers id. Adding a known type is a no-op. A new type is placed into
// the existing order when a safe slot can be found cheaply; otherwise the
// whole order is rebuilt. On error the graph is left exactly as it was.
func (g *Graph) Add(id TypeID) error {
	start := time.Now()

	if g.Has(id) {
		g.recorder.ObserveAdd(OutcomeKnown, time.Since(start))
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes.lookup(id); ok {
		g.recorder.ObserveAdd(OutcomeKnown, time.Since(start))
		return nil
	}

	refs, err := g.provider.Dependencies(id)
	if err != nil {
		perr := classifyProviderError(id, err)
		g.logf("add %s: provider failed (%s, %s): %v", id, perr.Class, perr.Code, err)
		g.recorder.ObserveAdd(OutcomeFailed, time.Since(start))
		return perr
	}

	node := newTypeNode(id, refs)
	idx := g.nodes.push(node)
	g.logf("add %s: %d reference(s) to %s", id, len(refs), formatTargets(node.Targets()))

	outcome, err := g.place(idx)
	if err != nil {
		g.nodes.pop()
		g.logf("add %s: rebuild failed (%s): %v", id, ErrorCode(err), err)
		g.recorder.ObserveAdd(OutcomeFailed, time.Since(start))
		return err
	}

	g.version++
	g.recorder.SetTypes(len(g.nodes.nodes))
	g.recorder.ObserveAdd(outcome, time.Since(start))
	return nil
}

// place puts the node at arena index idx into the order, falling back to a
// full rebuild when the cheap path fails. Callers hold the write lock.
func (g *Graph) place(idx int) (string, error) {
	id := g.nodes.nodes[idx].id

	p, ok := tryInsert(g.nodes, g.seq, idx)
	if ok {
		switch p.outcome {
		case OutcomeAppended:
			g.logf("add %s: appended at position %d", id, p.position)
		case OutcomeInsertedBefore:
			g.logf("add %s: inserted before %s at position %d", id, p.anchor, p.position)
		case OutcomeInsertedAfter:
			g.logf("add %s: inserted after %s at position %d", id, p.anchor, p.position)
		}
		return p.outcome, nil
	}

	g.logf("add %s: no safe slot (%s), rebuilding %d type(s)", id, p.reason, len(g.nodes.nodes))

	result, err := rebuild(g.nodes)
	if err != nil {
		return OutcomeFailed, err
	}

	result.apply(g.nodes)
	g.seq = sequenceFromOrder(result.order, len(g.nodes.nodes))

	for _, e := range result.cyclic {
		owner := g.nodes.nodes[e.owner]
		g.logf("rebuild: %s -> %s flagged cyclic via %s",
			owner.id, e.target, attributeNames(owner.Attributes(e.target)))
	}
	g.logf("rebuild: order %s", g.formatOrder())

	return OutcomeRebuilt, nil
}

// Has reports whether id has been added.
func (g *Graph) Has(id TypeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes.lookup(id)
	return ok
}

// Len returns the number of registered types.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes.nodes)
}

// Version returns the current graph version.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.version
}

// Position returns the current creation-order position of id.
func (g *Graph) Position(id TypeID) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.nodes.lookup(id)
	if !ok {
		return -1, false
	}
	p := g.seq.position(idx)
	return p, p >= 0
}

// Node returns a detached copy of the record of id.
func (g *Graph) Node(id TypeID) (*TypeNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.nodes.lookup(id)
	if !ok {
		return nil, false
	}
	return g.nodes.nodes[idx].clone(), true
}

// CreationOrder returns the current creation order, parents first. The result
// is cached: repeated calls without an intervening structural change return
// the same *Snapshot.
func (g *Graph) CreationOrder() *Snapshot {
	g.mu.RLock()
	if s := g.snapshot; s != nil && s.Version == g.version {
		g.mu.RUnlock()
		return s
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.snapshotLocked()
}

// snapshotLocked returns the cached snapshot, refreshing it if stale. Callers
// hold the write lock.
func (g *Graph) snapshotLocked() *Snapshot {
	if g.snapshot == nil || g.snapshot.Version != g.version {
		g.snapshot = project(g.nodes, g.seq, g.version)
		g.recorder.ObserveSnapshot(g.snapshot.Len())
	}
	return g.snapshot
}

// DeletionOrder returns the exact reverse of CreationOrder, children first.
// The slice is shared with the cached snapshot and must not be modified.
func (g *Graph) DeletionOrder() []TypeID {
	return g.CreationOrder().deletion
}

// Log returns a copy of the diagnostic trace.
func (g *Graph) Log() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, len(g.trace))
	copy(out, g.trace)
	return out
}

// logf appends a line to the trace. Callers hold the write lock.
func (g *Graph) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	g.trace = append(g.trace, line)
	g.logger.Debug().Msg(line)
}

func (g *Graph) formatOrder() string {
	ids := make([]TypeID, g.seq.len())
	for p := range ids {
		ids[p] = g.nodes.nodes[g.seq.at(p)].id
	}
	return formatTargets(ids)
}

func formatTargets(ids []TypeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func attributeNames(attrs []AttributeDependency) string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
