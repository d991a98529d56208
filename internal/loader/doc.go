// Package loader implements the background worker that owns the six
// priority queues, drives internal/diskstore and internal/generator, and
// delivers completed thumbnails back to the requester thread.
//
// A Loader is constructed once per process (or per test), Start()ed to
// launch its single worker goroutine, and driven from the requester side
// through Attach, Update, Cancel and SetMaxCost. The worker signals the
// requester thread through a wake channel returned by WakeCh; the host
// is responsible for calling DrainCompletions after a value arrives on
// it, on whatever thread it wants delivery callbacks to run on. This
// mirrors the original cache's "post to the other thread's event loop"
// contract without assuming any particular event loop exists.
//
// All loader-owned state — the priority queues, the completed FIFO, and
// the request cache — is protected by a single mutex. A subscriber's own
// priority and identity fields are only ever touched from the requester
// thread, matching the concurrency contract the original implementation
// relied on.
package loader
