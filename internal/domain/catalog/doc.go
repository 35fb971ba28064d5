// Package catalog provides the immutable universe of installable items.
//
// A Catalog is loaded once at startup from a Source (static seed list,
// manifest directory, or remote index) and never changes afterwards. It is
// the key set every library view is derived against: items outside the
// catalog are never surfaced, even when the host system reports them
// installed.
package catalog
