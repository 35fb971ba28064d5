// Package library implements the state-reconciliation view engine.
//
// The engine derives a live, sorted library view by merging three sources:
// the immutable catalog (the key set), the action log's latest snapshot of
// in-flight lifecycle actions, and the host's installed-state query. An
// in-flight action outranks observed system state; a terminal successful
// uninstall outranks a possibly stale system record; everything else defers
// to the system query. Refresh rebuilds the base state from a full system
// scan, ignoring the action log.
package library
