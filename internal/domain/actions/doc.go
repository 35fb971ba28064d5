// Package actions records install/uninstall lifecycle actions and exposes
// them as a live sequence of full snapshots, keyed by item ID with at most
// one current action per item. The library engine consumes this stream; the
// executor completes committed actions against the simulated system state.
package actions
