// Package component defines lifecycle-managed collaborators (object storage,
// warehouse, run store, database) and a registry that starts them in
// registration order and stops them in reverse.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: one-line summary shown at startup
package component
