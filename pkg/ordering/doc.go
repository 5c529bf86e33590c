// Package ordering computes safe creation and deletion orders for entity types
// connected by lookup references.
//
// # Overview
//
// Tests that create CRM records must create referenced records first and delete
// them last. A Graph tracks every entity type a test run has touched and keeps
// a creation order in which, for every reference A -> B, B comes before A.
// DeletionOrder is the exact reverse.
//
// # Adding Types
//
// Types are registered one at a time with Add. The first Add of a type asks a
// TypeDependencyProvider for its reference fields; later Adds are no-ops:
//
//	graph := ordering.NewGraph(provider)
//	if err := graph.Add("contact"); err != nil {
//	    return err
//	}
//	for _, e := range graph.CreationOrder().Entries {
//	    fmt.Println(e.Type, e.CyclicAttributes)
//	}
//
// A new type is first placed into the existing order without moving anything
// else. When no slot can be proven safe that way, the whole order is rebuilt
// with a depth-first traversal.
//
// # Cycles
//
// References that close a cycle (including self references) do not fail the
// graph. The rebuild flags the attributes behind such a back edge as cyclic;
// they are exempt from the ordering guarantee and must be populated after all
// records of the cycle exist. Flags are recomputed on every rebuild.
//
// A CyclicDependencyError is only returned when a rebuild re-enters a type that
// is still being processed. A failed Add leaves the graph unchanged.
//
// # Snapshots
//
// CreationOrder returns an immutable, versioned Snapshot. It is rebuilt lazily
// after a structural change and shared between readers otherwise.
package ordering
