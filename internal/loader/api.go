package loader

import (
	"net/url"
	"strings"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"
)

// Attach registers id as a subscriber of the thumbnail identified by
// sourceURL, width, height and crop, creating the underlying request if
// none exists yet, reusing a completed one if the cache already has it,
// or joining an in-flight one otherwise. unbounded selects which ladder
// walk direction sizeladder.Select uses to pick a stored size.
func (l *Loader) Attach(id requestcache.SubscriberID, sourceURL string, width, height int, crop bool, priority requestcache.Priority, mimeHint string, unbounded bool) {
	if width <= 0 || height <= 0 {
		l.deliverInvalidSize(id)
		return
	}

	sourcePath := resolveSourcePath(sourceURL)
	size := l.ladder.Select(width, height, crop, unbounded)
	key := cachekey.Derive(sourcePath, size, crop)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.items[id] = &itemState{
		key:        key,
		sourcePath: sourcePath,
		mimeHint:   mimeHint,
		size:       size,
		crop:       crop,
		priority:   priority,
		unbounded:  unbounded,
	}

	req, outcome := l.cache.Attach(key, sourcePath, mimeHint, size, crop, requestcache.Subscriber{ID: id, Priority: priority})
	req.Unbounded = unbounded

	switch outcome {
	case requestcache.OutcomeNew:
		l.enqueue(stageQueueName("lookup", req.EffectivePriority), req)
		l.cond.Broadcast()
	case requestcache.OutcomeRehome:
		l.rehome(req)
	case requestcache.OutcomeImmediateDeliver:
		l.deliverLocked(id, req)
	}
}

// Update changes priority and/or identity (source, size, crop) for an
// already-attached subscriber. A size/crop/source change is treated as a
// fresh Attach under a new key; a bare priority change just rehomes the
// existing request.
func (l *Loader) Update(id requestcache.SubscriberID, sourceURL string, width, height int, crop bool, priority requestcache.Priority, mimeHint string, unbounded bool) {
	if width <= 0 || height <= 0 {
		l.deliverInvalidSize(id)
		return
	}

	l.mu.Lock()
	prev, ok := l.items[id]
	l.mu.Unlock()

	if !ok {
		l.Attach(id, sourceURL, width, height, crop, priority, mimeHint, unbounded)
		return
	}

	sourcePath := resolveSourcePath(sourceURL)
	size := l.ladder.Select(width, height, crop, unbounded)
	newKey := cachekey.Derive(sourcePath, size, crop)

	if newKey == prev.key {
		l.mu.Lock()
		prev.priority = priority
		if req, found := l.cache.Get(prev.key); found {
			for i := range req.Subscribers {
				if req.Subscribers[i].ID == id {
					req.Subscribers[i].Priority = priority
				}
			}
			req.RecomputeEffectivePriority()
			l.rehome(req)
		}
		l.mu.Unlock()
		return
	}

	l.mu.Lock()
	old, ok := l.cache.Get(prev.key)
	l.mu.Unlock()
	if !ok {
		l.Attach(id, sourceURL, width, height, crop, priority, mimeHint, unbounded)
		return
	}

	l.mu.Lock()
	newReq, outcome, oldDestroyed := l.cache.MarkIdentityChange(old, id, newKey, sourcePath, mimeHint, size, crop, priority)
	newReq.Unbounded = unbounded
	if oldDestroyed {
		l.removeFromQueue(old)
	}

	l.items[id] = &itemState{
		key:        newKey,
		sourcePath: sourcePath,
		mimeHint:   mimeHint,
		size:       size,
		crop:       crop,
		priority:   priority,
		unbounded:  unbounded,
	}

	switch outcome {
	case requestcache.OutcomeNew:
		l.enqueue(stageQueueName("lookup", newReq.EffectivePriority), newReq)
		l.cond.Broadcast()
	case requestcache.OutcomeRehome:
		l.rehome(newReq)
	case requestcache.OutcomeImmediateDeliver:
		l.deliverLocked(id, newReq)
	}
	l.mu.Unlock()
}

// Cancel detaches id. If that was the request's last subscriber and it
// hadn't started running yet, it's removed from whichever queue it
// occupied.
func (l *Loader) Cancel(id requestcache.SubscriberID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.items[id]
	if !ok {
		return
	}
	delete(l.items, id)

	req, ok := l.cache.Get(st.key)
	if !ok {
		return
	}

	destroyed := l.cache.Detach(req, id)
	if destroyed {
		l.removeFromQueue(req)
	}
}

// SetMaxCost changes the retained-completions pixel-cost budget, evicting
// immediately if the new limit is below the current total.
func (l *Loader) SetMaxCost(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.SetMaxCost(n)
}

// Suspend pauses the worker. Already-Running work finishes, but nothing
// new is dequeued until Resume.
func (l *Loader) Suspend() {
	l.mu.Lock()
	l.suspended = true
	metrics.Suspended.Set(1)
	l.mu.Unlock()
}

// Resume un-pauses the worker and reschedules every still-subscribed
// completed request back onto its lookup queue, so a render context torn
// down during suspend gets fresh pixels rather than a stale decoded image
// handed back unchanged.
func (l *Loader) Resume() {
	l.mu.Lock()
	l.suspended = false
	metrics.Suspended.Set(0)

	for _, req := range l.cache.Snapshot() {
		if req.State != requestcache.Completed || len(req.Subscribers) == 0 {
			continue
		}
		l.cache.Requeue(req)
		req.State = requestcache.QueuedLookup
		l.enqueue(stageQueueName("lookup", req.EffectivePriority), req)
	}

	l.cond.Broadcast()
	l.mu.Unlock()
}

// deliverLocked schedules immediate local delivery to id alone: a brand
// new subscriber joining an already-Completed request shouldn't have to
// wait for the worker to notice it, but it also shouldn't cause every
// other, already-serviced subscriber of that request to be redelivered.
// cache.Attach has already renewed req in cached_completed for this
// attach, so this entry carries no req reference and triggers no further
// renewal.
func (l *Loader) deliverLocked(id requestcache.SubscriberID, req *requestcache.Request) {
	wasEmpty := l.completed.Len() == 0
	l.completed.PushBack(&completedEntry{
		recipients: []requestcache.SubscriberID{id},
		status:     req.State,
		result:     req.Result,
	})
	if wasEmpty {
		l.wake()
	}
}

// deliverInvalidSize schedules an immediate Failed/InvalidSizeSelection
// delivery to id for a non-positive width or height, without ever
// deriving a cache key or calling sizeladder.Select. Not backed by any
// cache request, so it skips cache renewal entirely.
func (l *Loader) deliverInvalidSize(id requestcache.SubscriberID) {
	l.mu.Lock()
	wasEmpty := l.completed.Len() == 0
	l.completed.PushBack(&completedEntry{
		recipients: []requestcache.SubscriberID{id},
		status:     requestcache.Failed,
		result:     requestcache.Result{Err: requestcache.InvalidSizeSelection},
	})
	l.mu.Unlock()

	if wasEmpty {
		l.wake()
	}
}

// resolveSourcePath turns a source URL into a filesystem path: a bare path
// passes through unchanged, a file:// URL is unwrapped, and anything else
// resolves to empty (the request will fail lookup/generation rather than
// reading an unsupported scheme).
func resolveSourcePath(sourceURL string) string {
	if !strings.Contains(sourceURL, "://") {
		return sourceURL
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return u.Path
}
