// Package requestcache implements the in-memory, deduplicating request
// table that sits in front of the disk store and generator: a mapping
// from cache key to Request, a retained-completions list used for
// least-recently-renewed eviction under a pixel-cost budget, and the
// bookkeeping that keeps a Request's effective priority in sync with its
// subscribers.
//
// This package owns no mutex and starts no goroutines. Every exported
// method assumes its caller already holds whatever lock protects the
// wider loader state (see internal/loader); requestcache only ever needs
// to be consistent with itself, not safe for unsynchronized concurrent
// access on its own.
package requestcache
