package ordering

import "time"

// TypeID identifies a data-model type, such as an entity logical name.
// It is the unique key of a type across the whole graph.
type TypeID string

// Reference is a single outgoing reference field reported by a
// TypeDependencyProvider.
type Reference struct {
	// Target is the referenced type.
	Target TypeID `json:"target" yaml:"target"`

	// Attribute is the name of the referencing field.
	Attribute string `json:"attribute" yaml:"attribute"`

	// SelfReferencing is true when Target is the owning type itself.
	SelfReferencing bool `json:"self_referencing,omitempty" yaml:"self_referencing,omitempty"`
}

// AttributeDependency is an outgoing reference field on a type together with
// its cycle flag. The flag is recomputed on every rebuild.
type AttributeDependency struct {
	// Name is the attribute name of the referencing field.
	Name string `json:"name"`

	// Cyclic marks a reference that closes a cycle and must be populated
	// after both records exist.
	Cyclic bool `json:"cyclic"`
}

// TypeDependencyProvider resolves the outgoing reference fields of a type.
// The graph calls it exactly once per type, the first time the type is added.
type TypeDependencyProvider interface {
	Dependencies(id TypeID) ([]Reference, error)
}

// ProviderFunc adapts an ordinary function to a TypeDependencyProvider.
type ProviderFunc func(id TypeID) ([]Reference, error)

// Dependencies calls f(id).
func (f ProviderFunc) Dependencies(id TypeID) ([]Reference, error) {
	return f(id)
}

// Add outcomes reported to a Recorder.
const (
	OutcomeKnown          = "known"
	OutcomeAppended       = "appended"
	OutcomeInsertedBefore = "inserted_before"
	OutcomeInsertedAfter  = "inserted_after"
	OutcomeRebuilt        = "rebuilt"
	OutcomeFailed         = "failed"
)

// Recorder receives graph activity for metrics collection.
type Recorder interface {
	// ObserveAdd records a completed Add call and how it was resolved.
	ObserveAdd(outcome string, elapsed time.Duration)

	// ObserveSnapshot records a snapshot refresh with its entry count.
	ObserveSnapshot(entries int)

	// SetTypes records the number of registered types.
	SetTypes(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAdd(string, time.Duration) {}
func (nopRecorder) ObserveSnapshot(int)              {}
func (nopRecorder) SetTypes(int)                     {}
