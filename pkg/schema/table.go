package schema

import (
	"sort"

	"github.com/fakexrm/fakexrm/pkg/ordering"
)

// TableProvider serves references from a fixed in-memory table. Types missing
// from the table have no dependencies.
type TableProvider struct {
	table map[ordering.TypeID][]ordering.Reference
}

// NewTableProvider copies table into a new provider.
func NewTableProvider(table map[ordering.TypeID][]ordering.Reference) *TableProvider {
	copied := make(map[ordering.TypeID][]ordering.Reference, len(table))
	for id, refs := range table {
		copied[id] = append([]ordering.Reference(nil), refs...)
	}
	return &TableProvider{table: copied}
}

// Dependencies implements ordering.TypeDependencyProvider.
func (p *TableProvider) Dependencies(id ordering.TypeID) ([]ordering.Reference, error) {
	refs, ok := p.table[id]
	if !ok {
		return nil, nil
	}
	return append([]ordering.Reference(nil), refs...), nil
}

// Types returns every type in the table, sorted.
func (p *TableProvider) Types() []ordering.TypeID {
	ids := make([]ordering.TypeID, 0, len(p.table))
	for id := range p.table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
