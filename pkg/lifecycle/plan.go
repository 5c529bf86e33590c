package lifecycle

import (
	"context"
	"fmt"

	"github.com/fakexrm/fakexrm/pkg/ordering"
	"github.com/fakexrm/fakexrm/pkg/telemetry"
)

// Step creates the records of one type. Deferred attributes close a
// reference cycle and must be set by an update once every record exists.
type Step struct {
	Type     ordering.TypeID `json:"type"`
	Deferred []string        `json:"deferred,omitempty"`
}

// CreationPlan lists the steps needed to create a set of types.
type CreationPlan struct {
	Version uint64 `json:"version"`
	Steps   []Step `json:"steps"`
}

// Types returns the step types in creation order.
func (p *CreationPlan) Types() []ordering.TypeID {
	out := make([]ordering.TypeID, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Type
	}
	return out
}

// HasDeferred reports whether any step needs a follow-up update.
func (p *CreationPlan) HasDeferred() bool {
	for _, s := range p.Steps {
		if len(s.Deferred) > 0 {
			return true
		}
	}
	return false
}

// Plan registers types with the graph and returns their creation order.
// Without arguments the plan covers every type the graph knows.
func (t *Tracker) Plan(ctx context.Context, types ...ordering.TypeID) (*CreationPlan, error) {
	_, span := t.telemetryFor(ctx).Tracer.StartSpan(ctx, "lifecycle.plan",
		telemetry.AttrTypeCount.Int(len(types)))

	plan, err := t.plan(types)
	if err == nil {
		span.SetAttributes(telemetry.AttrGraphVersion.Int64(int64(plan.Version)))
	}
	telemetry.End(span, err)
	return plan, err
}

func (t *Tracker) plan(types []ordering.TypeID) (*CreationPlan, error) {
	wanted := make(map[ordering.TypeID]bool, len(types))
	for _, typ := range types {
		if err := t.graph.Add(typ); err != nil {
			return nil, fmt.Errorf("failed to register type %s: %w", typ, err)
		}
		wanted[typ] = true
	}

	snap := t.graph.CreationOrder()
	plan := &CreationPlan{Version: snap.Version}
	for _, e := range snap.Entries {
		if len(types) > 0 && !wanted[e.Type] {
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			Type:     e.Type,
			Deferred: append([]string(nil), e.CyclicAttributes...),
		})
	}
	return plan, nil
}
