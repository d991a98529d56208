package requestcache

import (
	"container/list"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

// AttachOutcome tells the caller what, if anything, it needs to do with
// the priority queues after an Attach call.
type AttachOutcome int

const (
	// OutcomeNew is a brand new request; the caller must schedule it on
	// the lookup queue matching its EffectivePriority.
	OutcomeNew AttachOutcome = iota

	// OutcomeRehome is an existing, not-yet-completed request whose
	// EffectivePriority may have changed; the caller should move it to
	// the queue matching the new priority if it changed.
	OutcomeRehome

	// OutcomeImmediateDeliver is an already-Completed request; it has
	// been renewed into the retained-completions list and the caller
	// should deliver its Result to the new subscriber synchronously,
	// without touching the priority queues.
	OutcomeImmediateDeliver
)

// Cache is the in-memory cacheKey -> Request table plus the
// retained-completions list that drives least-recently-renewed eviction.
type Cache struct {
	entries         map[cachekey.Key]*Request
	cachedCompleted *list.List
	totalCost       int
	maxCost         int
}

// New returns an empty Cache with the given pixel-cost budget.
func New(maxCost int) *Cache {
	return &Cache{
		entries:         make(map[cachekey.Key]*Request),
		cachedCompleted: list.New(),
		maxCost:         maxCost,
	}
}

// Get returns the request for key, if any.
func (c *Cache) Get(key cachekey.Key) (*Request, bool) {
	r, ok := c.entries[key]
	return r, ok
}

// Len returns the number of distinct keys tracked, regardless of state.
func (c *Cache) Len() int {
	return len(c.entries)
}

// TotalCost returns the current sum of cache_cost across cached_completed.
func (c *Cache) TotalCost() int {
	return c.totalCost
}

// RetainedCount returns the number of requests currently resident in
// cached_completed.
func (c *Cache) RetainedCount() int {
	return c.cachedCompleted.Len()
}

// Attach adds sub as a subscriber of the request identified by key,
// creating it if it doesn't exist. See AttachOutcome for what the caller
// must do next.
func (c *Cache) Attach(key cachekey.Key, sourcePath, mimeHint string, size sizeladder.Size, crop bool, sub Subscriber) (*Request, AttachOutcome) {
	if r, ok := c.entries[key]; ok {
		r.Subscribers = append(r.Subscribers, sub)
		r.RecomputeEffectivePriority()
		r.Demoted = false

		if r.State == Completed {
			c.renew(r)
			return r, OutcomeImmediateDeliver
		}
		return r, OutcomeRehome
	}

	r := &Request{
		Key:               key,
		SourcePath:        sourcePath,
		MimeHint:          mimeHint,
		RequestedSize:     size,
		Crop:              crop,
		Subscribers:       []Subscriber{sub},
		State:             QueuedLookup,
		EffectivePriority: sub.Priority,
	}
	c.entries[key] = r
	return r, OutcomeNew
}

// Detach removes id from r's subscribers and recomputes effective
// priority. It returns true if the request was destroyed as a result.
//
// A request that loses its last subscriber while Running is marked
// Demoted instead of destroyed; at commit the worker, finding no
// subscribers, skips delivery and admits it to cached_completed. A request that loses its last subscriber while Completed or
// Failed is left resident in cached_completed with zero subscribers —
// eviction, not Detach, is what reclaims it, since a later Attach for the
// same key should still hit the cache. Only a request that hasn't
// started running yet (still queued for lookup or generate) is destroyed
// immediately.
func (c *Cache) Detach(r *Request, id SubscriberID) bool {
	for i, s := range r.Subscribers {
		if s.ID == id {
			r.Subscribers = append(r.Subscribers[:i], r.Subscribers[i+1:]...)
			break
		}
	}
	r.RecomputeEffectivePriority()

	if len(r.Subscribers) > 0 {
		return false
	}

	switch r.State {
	case Running:
		r.Demoted = true
		return false
	case Completed, Failed:
		return false
	default:
		c.destroy(r)
		return true
	}
}

// MarkIdentityChange detaches id from old and attaches it fresh under
// newKey, matching attach(item, ...) semantics for the new identity.
func (c *Cache) MarkIdentityChange(old *Request, id SubscriberID, newKey cachekey.Key, sourcePath, mimeHint string, size sizeladder.Size, crop bool, priority Priority) (newReq *Request, outcome AttachOutcome, oldDestroyed bool) {
	oldDestroyed = c.Detach(old, id)
	newReq, outcome = c.Attach(newKey, sourcePath, mimeHint, size, crop, Subscriber{ID: id, Priority: priority})
	return newReq, outcome, oldDestroyed
}

// RenewOnCompletion admits r into cached_completed (moving it to the back
// if it was already resident) and runs an eviction pass. It returns any
// requests evicted as a result, which the caller must also remove from
// its own bookkeeping (e.g. the delivered-completions list).
func (c *Cache) RenewOnCompletion(r *Request) []*Request {
	c.renew(r)
	return c.evict()
}

// SetMaxCost changes the pixel-cost budget and immediately runs an
// eviction pass against the new limit.
func (c *Cache) SetMaxCost(n int) []*Request {
	c.maxCost = n
	return c.evict()
}

func (c *Cache) renew(r *Request) {
	if r.cachedElem != nil {
		c.cachedCompleted.Remove(r.cachedElem)
		c.totalCost -= r.CacheCost
	}
	r.cachedElem = c.cachedCompleted.PushBack(r)
	c.totalCost += r.CacheCost
}

// evict walks cached_completed from the front, removing zero-subscriber
// entries until total_cost is within budget or no further entry is
// evictable. Entries with subscribers are skipped in place, matching the
// budget-may-be-exceeded-while-subscribed invariant.
func (c *Cache) evict() []*Request {
	var evicted []*Request

	for c.totalCost > c.maxCost {
		evictedThisPass := false

		for e := c.cachedCompleted.Front(); e != nil; {
			next := e.Next()
			req := e.Value.(*Request)

			if len(req.Subscribers) == 0 {
				c.cachedCompleted.Remove(e)
				c.totalCost -= req.CacheCost
				req.cachedElem = nil
				delete(c.entries, req.Key)
				evicted = append(evicted, req)
				evictedThisPass = true

				if c.totalCost <= c.maxCost {
					return evicted
				}
			}
			e = next
		}

		if !evictedThisPass {
			break
		}
	}

	return evicted
}

// Snapshot returns every tracked request regardless of state, for Resume's
// pass over subscribed completed entries. Callers must not mutate the
// returned slice's backing map.
func (c *Cache) Snapshot() []*Request {
	out := make([]*Request, 0, len(c.entries))
	for _, r := range c.entries {
		out = append(out, r)
	}
	return out
}

// Requeue pulls r out of cached_completed (reclaiming its cost) without
// removing it from the key table, for a request being rescheduled after a
// suspend/resume cycle rather than reused as-is.
func (c *Cache) Requeue(r *Request) {
	if r.cachedElem != nil {
		c.cachedCompleted.Remove(r.cachedElem)
		c.totalCost -= r.CacheCost
		r.cachedElem = nil
	}
}

func (c *Cache) destroy(r *Request) {
	delete(c.entries, r.Key)
	if r.cachedElem != nil {
		c.cachedCompleted.Remove(r.cachedElem)
		c.totalCost -= r.CacheCost
		r.cachedElem = nil
	}
}
