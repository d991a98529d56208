package loader

import "github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"

// completedEntry is one pending delivery in the completed FIFO. recipients
// and status/result are snapshotted at post time, not re-read from req at
// drain time: a request's subscriber set can change between a worker
// commit and the next DrainCompletions call (a new Attach on the same key
// takes the immediate-deliver path and posts its own solo entry), and
// re-reading req.Subscribers at drain time would redeliver to whichever
// subscriber just joined.
//
// req is nil for an entry that needs no renewal: the size-validation
// failure posted directly by Attach/Update, which has no cache request at
// all, and the immediate delivery posted by deliverLocked, whose request
// cache.Attach has already renewed. Such an entry skips the cache-renewal
// step.
type completedEntry struct {
	req        *requestcache.Request
	recipients []requestcache.SubscriberID
	status     requestcache.Status
	result     requestcache.Result
}

// DrainCompletions delivers every entry currently sitting in the completed
// FIFO to its recipients, then renews any cache-backed entry in the
// request cache (admitting it into cached_completed, running an eviction
// pass). Call this on whatever thread should run Deliver callbacks, after
// a receive on WakeCh.
func (l *Loader) DrainCompletions() {
	for {
		l.mu.Lock()
		e := l.completed.Front()
		if e == nil {
			l.mu.Unlock()
			return
		}
		entry := e.Value.(*completedEntry)
		l.completed.Remove(e)
		if entry.req != nil {
			entry.req.CompletedElem = nil
		}
		recipients := entry.recipients
		status := entry.status
		result := entry.result
		l.mu.Unlock()

		if l.deliver != nil {
			for _, id := range recipients {
				l.deliver.OnDeliver(id, status, result)
			}
		}

		if entry.req != nil {
			l.mu.Lock()
			evicted := l.cache.RenewOnCompletion(entry.req)
			for _, ev := range evicted {
				l.forgetEvicted(ev)
			}
			l.mu.Unlock()
		}
	}
}

// forgetEvicted drops any itemState entries still pointing at an evicted
// request's key, so a later Cancel/Update for those subscribers doesn't
// look one up in the cache and find nothing. In practice an evicted entry
// should already have zero subscribers, so this is usually a no-op.
func (l *Loader) forgetEvicted(req *requestcache.Request) {
	for id, st := range l.items {
		if st.key == req.Key {
			delete(l.items, id)
		}
	}
}
