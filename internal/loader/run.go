package loader

import (
	"context"
	"os"
	"time"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/generator"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

// run is the Loader's single worker goroutine. It waits for work, dequeues
// one request at a time in strict priority order, and processes it outside
// the lock.
func (l *Loader) run() {
	for {
		l.mu.Lock()
		for !l.stopped && (l.suspended || l.allQueuesEmptyLocked()) {
			l.cond.Wait()
		}
		if l.stopped {
			l.mu.Unlock()
			return
		}

		req, queueName := l.dequeueLocked()
		if req == nil {
			l.mu.Unlock()
			continue
		}
		req.Loading = true
		req.State = requestcache.Running
		req.FastMode = req.EffectivePriority == requestcache.Low
		l.mu.Unlock()

		switch stageOf(queueName) {
		case "lookup":
			l.processLookup(req)
		default:
			l.processGenerate(req)
		}
	}
}

func (l *Loader) allQueuesEmptyLocked() bool {
	for _, q := range l.queues {
		if q.Len() > 0 {
			return false
		}
	}
	return true
}

func (l *Loader) dequeueLocked() (*requestcache.Request, string) {
	for _, name := range dequeueOrder {
		q := l.queues[name]
		if q.Len() == 0 {
			continue
		}
		e := q.Front()
		q.Remove(e)
		metrics.QueueDepth.WithLabelValues(name).Set(float64(q.Len()))
		req := e.Value.(*requestcache.Request)
		req.QueueElem = nil
		req.QueueName = ""
		return req, name
	}
	return nil, ""
}

// processLookup walks the ladder from req's requested size looking for a
// usable disk-cache hit, re-scaling it to the exact requested box on a hit.
// A full miss re-enqueues req on the generate queue at its current
// priority rather than failing it outright.
func (l *Loader) processLookup(req *requestcache.Request) {
	var sourceModTime time.Time
	if info, err := os.Stat(req.SourcePath); err == nil {
		sourceModTime = info.ModTime()
	}

	for size := req.RequestedSize; size != sizeladder.None; size = l.ladder.NextSize(size, req.Unbounded) {
		key := cachekey.Derive(req.SourcePath, size, req.Crop)
		path, ok := l.store.Lookup(key, sourceModTime)
		if !ok {
			continue
		}

		img, err := generator.ScaleExisting(path, req.RequestedSize, req.Crop, l.filter)
		if err != nil {
			log.Warn("loader: rescale cached entry %s: %v", path, err)
			continue
		}

		b := img.Bounds()
		req.Result = requestcache.Result{Path: path, Image: img, Width: b.Dx(), Height: b.Dy()}
		req.CacheCost = b.Dx() * b.Dy()
		req.State = requestcache.Completed
		l.commit(req)
		return
	}

	l.mu.Lock()
	req.State = requestcache.QueuedGenerate
	l.enqueue(stageQueueName("generate", req.EffectivePriority), req)
	l.cond.Broadcast()
	l.mu.Unlock()
}

// processGenerate dispatches req to the generator backend appropriate for
// its mime type and commits the outcome.
func (l *Loader) processGenerate(req *requestcache.Request) {
	key := cachekey.Derive(req.SourcePath, req.RequestedSize, req.Crop)

	res, err := l.gen.Generate(context.Background(), generator.Request{
		Path:     req.SourcePath,
		MimeType: req.MimeHint,
		Size:     req.RequestedSize,
		Crop:     req.Crop,
		FastMode: req.FastMode,
	}, l.store, key)

	if err != nil {
		log.Warn("loader: generate %s: %v", req.SourcePath, err)
		l.commitFailure(req, requestcache.GeneratorFailed)
		return
	}

	img := res.Image
	if img == nil && res.Path != "" {
		// A subprocess backend wrote a file without handing back pixels;
		// re-decode it the same way a lookup hit would.
		img, err = generator.ScaleExisting(res.Path, req.RequestedSize, req.Crop, l.filter)
		if err != nil {
			log.Warn("loader: decode generated entry %s: %v", res.Path, err)
			l.commitFailure(req, requestcache.DecodeFailed)
			return
		}
	}
	if img == nil {
		l.commitFailure(req, requestcache.GeneratorFailed)
		return
	}

	b := img.Bounds()
	req.Result = requestcache.Result{Path: res.Path, Image: img, Width: b.Dx(), Height: b.Dy()}
	req.CacheCost = b.Dx() * b.Dy()
	req.State = requestcache.Completed
	l.commit(req)
}

func (l *Loader) commitFailure(req *requestcache.Request, kind requestcache.ErrorKind) {
	req.Result = requestcache.Result{Err: kind}
	req.State = requestcache.Failed
	l.commit(req)
}

// commit finishes processing a terminal request. A request demoted (or
// simply abandoned) while running skips the completed FIFO entirely and
// goes straight back into the retained-completions bookkeeping; otherwise
// it's queued for delivery and the requester thread is woken if it wasn't
// already.
func (l *Loader) commit(req *requestcache.Request) {
	l.mu.Lock()
	req.Loading = false

	if len(req.Subscribers) == 0 {
		req.Demoted = false
		l.cache.RenewOnCompletion(req)
		l.mu.Unlock()
		return
	}

	wasEmpty := l.completed.Len() == 0
	l.postCompletedLocked(req)
	l.mu.Unlock()

	if wasEmpty {
		l.wake()
	}
}

// postCompletedLocked appends req to the completed-delivery FIFO unless
// it's already queued there, snapshotting its current subscribers as the
// delivery's recipients. Must be called with l.mu held.
func (l *Loader) postCompletedLocked(req *requestcache.Request) {
	if req.CompletedElem != nil {
		return
	}
	recipients := make([]requestcache.SubscriberID, len(req.Subscribers))
	for i, sub := range req.Subscribers {
		recipients[i] = sub.ID
	}
	req.CompletedElem = l.completed.PushBack(&completedEntry{
		req:        req,
		recipients: recipients,
		status:     req.State,
		result:     req.Result,
	})
}
