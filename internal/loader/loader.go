package loader

import (
	"container/list"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/diskstore"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/generator"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/memory"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

var log = logging.Category("thumbnailer")

// DefaultMaxCost is the pixel-cost budget used when a Config doesn't
// specify one, matching the original cache's 1360x768 screen assumption
// at 3x headroom for a handful of concurrently visible thumbnails.
const DefaultMaxCost = 1360 * 768 * 3

// queue names, used both as map keys and as metrics labels.
const (
	queueLookupHigh   = "lookup_high"
	queueLookupNormal = "lookup_normal"
	queueLookupLow    = "lookup_low"
	queueGenerateHigh = "generate_high"
	queueGenerateNorm = "generate_normal"
	queueGenerateLow  = "generate_low"
)

// dequeueOrder is the strict priority order the worker drains queues in.
var dequeueOrder = []string{
	queueLookupHigh,
	queueLookupNormal,
	queueGenerateHigh,
	queueGenerateNorm,
	queueLookupLow,
	queueGenerateLow,
}

// itemState is the requester-thread-owned record of one subscriber's
// current attachment, kept so Update/Cancel can find its request without
// the caller re-deriving the cache key.
type itemState struct {
	key        cachekey.Key
	sourcePath string
	mimeHint   string
	size       sizeladder.Size
	crop       bool
	priority   requestcache.Priority
	unbounded  bool
}

// Config configures a Loader.
type Config struct {
	CacheRoot   string
	MaxCost     int
	Ladder      sizeladder.Ladder
	VideoHelper string
	PDFHelper   string
	Deliver     Deliver

	// Memory, when set, is consulted by the default image backend before
	// every decode so generation backs off under memory pressure.
	Memory *memory.Monitor
}

// Loader owns the six priority queues, the request cache, and a single
// worker goroutine.
type Loader struct {
	mu   sync.Mutex
	cond *sync.Cond

	cache  *requestcache.Cache
	store  *diskstore.Store
	gen    generator.Generator
	ladder sizeladder.Ladder
	filter imaging.ResampleFilter

	queues    map[string]*list.List
	completed *list.List

	items map[requestcache.SubscriberID]*itemState

	suspended bool
	stopped   bool
	started   bool

	wakeCh chan struct{}

	deliver Deliver
}

// Deliver is the host-supplied callback invoked once per subscriber for
// each request drained by DrainCompletions.
type Deliver interface {
	OnDeliver(id requestcache.SubscriberID, status requestcache.Status, result requestcache.Result)
}

// New constructs a Loader. Call Start to launch its worker goroutine.
func New(cfg Config) *Loader {
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = DefaultMaxCost
	}

	l := &Loader{
		cache:     requestcache.New(maxCost),
		store:     diskstore.New(cfg.CacheRoot),
		gen:       generator.NewDispatcher(cfg.VideoHelper, cfg.PDFHelper, cfg.Memory),
		ladder:    cfg.Ladder,
		filter:    imaging.Lanczos,
		queues:    make(map[string]*list.List),
		completed: list.New(),
		items:     make(map[requestcache.SubscriberID]*itemState),
		wakeCh:    make(chan struct{}, 1),
		deliver:   cfg.Deliver,
	}
	l.cond = sync.NewCond(&l.mu)
	for _, name := range dequeueOrder {
		l.queues[name] = list.New()
	}
	return l
}

// WakeCh signals once whenever the worker posts the first entry into the
// completed FIFO since it was last drained. The host should call
// DrainCompletions after a receive.
func (l *Loader) WakeCh() <-chan struct{} {
	return l.wakeCh
}

// SetGenerator overrides the generator backend, e.g. to swap in the
// libvips-backed fast path. Must be called before Start.
func (l *Loader) SetGenerator(g generator.Generator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen = g
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (l *Loader) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go l.run()
}

// Stop sets the stop flag and wakes the worker goroutine, then returns
// without waiting for it. In-flight generation is not interrupted; the
// worker exits the next time it checks the flag, after any commit of the
// request it was processing.
func (l *Loader) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *Loader) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Loader) enqueue(name string, req *requestcache.Request) {
	q := l.queues[name]
	req.QueueElem = q.PushBack(req)
	req.QueueName = name
	metrics.QueueDepth.WithLabelValues(name).Set(float64(q.Len()))
}

func (l *Loader) removeFromQueue(req *requestcache.Request) {
	if req.QueueElem == nil {
		return
	}
	q := l.queues[req.QueueName]
	q.Remove(req.QueueElem)
	metrics.QueueDepth.WithLabelValues(req.QueueName).Set(float64(q.Len()))
	req.QueueElem = nil
	req.QueueName = ""
}

// stageQueueName returns the queue name for placing req at priority p in
// the given stage ("lookup" or "generate").
func stageQueueName(stage string, p requestcache.Priority) string {
	switch stage {
	case "lookup":
		switch p {
		case requestcache.High:
			return queueLookupHigh
		case requestcache.Normal:
			return queueLookupNormal
		default:
			return queueLookupLow
		}
	default:
		switch p {
		case requestcache.High:
			return queueGenerateHigh
		case requestcache.Normal:
			return queueGenerateNorm
		default:
			return queueGenerateLow
		}
	}
}

func stageOf(queueName string) string {
	switch queueName {
	case queueLookupHigh, queueLookupNormal, queueLookupLow:
		return "lookup"
	default:
		return "generate"
	}
}

// rehome moves req to the queue matching its current EffectivePriority,
// preserving its current stage (lookup vs generate), if it is currently
// queued and the target queue differs from its current one.
func (l *Loader) rehome(req *requestcache.Request) {
	if req.QueueElem == nil {
		return
	}
	target := stageQueueName(stageOf(req.QueueName), req.EffectivePriority)
	if target == req.QueueName {
		return
	}
	l.removeFromQueue(req)
	l.enqueue(target, req)
}
