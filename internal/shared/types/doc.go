// Package types defines the shared data model: catalog items, derived
// library statuses, and lifecycle actions exchanged between the catalog,
// the action log, and the library view engine.
package types
