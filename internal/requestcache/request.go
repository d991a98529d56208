package requestcache

import (
	"container/list"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

// Request is the in-core work item identified by a cache key. One exists
// per distinct (source, size, crop) triple with at least one subscriber,
// or retained in the completed cache for possible renewal.
//
// Every field is documented as owned by the requester thread or the
// worker thread; internal/loader is responsible for only touching a
// field from its owning side, or while holding its mutex for fields
// shared between the two.
type Request struct {
	Key           cachekey.Key
	SourcePath    string
	MimeHint      string
	RequestedSize sizeladder.Size
	Crop          bool
	Unbounded     bool

	// FastMode is set by the worker from EffectivePriority at dequeue
	// time (Low priority, e.g. background warming, requests the
	// generator's fast decode path). Worker-owned from that point on,
	// same as Result/State while Running.
	FastMode bool

	// Subscribers is mutated only on the requester thread, per the
	// concurrency contract in internal/loader.
	Subscribers []Subscriber

	// EffectivePriority is min(subscriber priorities), recomputed after
	// every subscriber add/remove.
	EffectivePriority Priority

	State   Status
	Loading bool

	// Demoted is set by Detach when the last subscriber leaves while the
	// request is Running, and cleared by a later Attach or at commit. The
	// worker's commit decides by the empty subscriber list, not by this
	// flag: such a request skips delivery and goes straight into
	// cached_completed.
	Demoted bool

	Result    Result
	CacheCost int

	// QueueElem is the list element holding this request's handle in
	// whichever of the loader's six priority queues it currently
	// occupies, or nil if it isn't queued. QueueName records which one,
	// for logging and metrics; both fields are loader-owned bookkeeping,
	// not part of the request-cache's own state.
	QueueElem *list.Element
	QueueName string

	// CompletedElem is the list element holding this request in the
	// loader's completed-delivery FIFO, or nil if it isn't queued for
	// delivery right now. Loader-owned, same as QueueElem.
	CompletedElem *list.Element

	// cachedElem is the list element holding this request in the
	// cache's retained-completions list, or nil if it isn't resident
	// there.
	cachedElem *list.Element
}

// RecomputeEffectivePriority sets r.EffectivePriority to the minimum
// priority across r.Subscribers. Called after every subscriber add or
// remove. An empty subscriber list leaves the previous value in place;
// the caller is expected to destroy such a request instead of scheduling
// it.
func (r *Request) RecomputeEffectivePriority() {
	if len(r.Subscribers) == 0 {
		return
	}
	best := r.Subscribers[0].Priority
	for _, s := range r.Subscribers[1:] {
		if s.Priority < best {
			best = s.Priority
		}
	}
	r.EffectivePriority = best
}

// HasSubscriber reports whether id is currently attached.
func (r *Request) HasSubscriber(id SubscriberID) bool {
	for _, s := range r.Subscribers {
		if s.ID == id {
			return true
		}
	}
	return false
}
