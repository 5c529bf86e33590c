// Package schema provides sources of entity reference metadata for the
// ordering graph.
//
// Every provider implements ordering.TypeDependencyProvider:
//
//   - TableProvider serves a static in-memory table.
//   - Document (YAML or CUE) converts to a TableProvider.
//   - SQLiteProvider reads an imported metadata store.
//   - ReflectProvider reads `xrm` tags on generated model structs.
//
// Watcher reloads a schema file after it changes, debouncing bursts of
// filesystem events.
package schema
