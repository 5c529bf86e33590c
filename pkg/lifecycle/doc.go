// Package lifecycle tracks entity records created during a test run and
// removes them in dependency-safe order.
//
// A Tracker shares an ordering.Graph with the rest of the harness. Plan
// returns the creation order for a set of types, with the attributes that
// must be filled in by a later update because they close a reference cycle.
// Cleanup walks the deletion order (children first) and calls a Deleter for
// each tracked record.
package lifecycle
