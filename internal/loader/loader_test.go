package loader

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/cachekey"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/diskstore"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/generator"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/sizeladder"
)

var errBoom = errors.New("boom")

type deliverEvent struct {
	id     requestcache.SubscriberID
	status requestcache.Status
	result requestcache.Result
}

type testDeliver struct {
	mu     sync.Mutex
	events []deliverEvent
}

func (d *testDeliver) OnDeliver(id requestcache.SubscriberID, status requestcache.Status, result requestcache.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, deliverEvent{id, status, result})
}

func (d *testDeliver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func (d *testDeliver) last() deliverEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events[len(d.events)-1]
}

type fakeGenerator struct {
	img image.Image
	err error
}

func (g *fakeGenerator) Generate(ctx context.Context, req generator.Request, store *diskstore.Store, key cachekey.Key) (generator.Result, error) {
	if g.err != nil {
		return generator.Result{}, g.err
	}
	return generator.Result{Image: g.img, Size: g.img.Bounds().Size()}, nil
}

func fakeImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	return New(Config{
		CacheRoot: t.TempDir(),
		Ladder:    sizeladder.NewLadder(540, 960),
		Deliver:   &testDeliver{},
	})
}

func TestAttachCreatesNewRequestOnLookupQueue(t *testing.T) {
	l := newTestLoader(t)
	l.Attach(1, "/media/a.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)

	if l.cache.Len() != 1 {
		t.Fatalf("cache.Len() = %d, want 1", l.cache.Len())
	}
	if l.queues[queueLookupNormal].Len() != 1 {
		t.Errorf("lookup_normal depth = %d, want 1", l.queues[queueLookupNormal].Len())
	}
}

func TestAttachDedupesAndRehomesOnPriorityChange(t *testing.T) {
	l := newTestLoader(t)
	l.Attach(1, "/media/a.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)
	l.Attach(2, "/media/a.jpg", 256, 256, true, requestcache.High, "image/jpeg", true)

	if l.cache.Len() != 1 {
		t.Fatalf("cache.Len() = %d, want 1 (dedup by key)", l.cache.Len())
	}
	if l.queues[queueLookupNormal].Len() != 0 {
		t.Errorf("lookup_normal depth = %d, want 0 after rehome", l.queues[queueLookupNormal].Len())
	}
	if l.queues[queueLookupHigh].Len() != 1 {
		t.Errorf("lookup_high depth = %d, want 1 after rehome", l.queues[queueLookupHigh].Len())
	}
}

func TestCancelBeforeDequeueRemovesFromQueue(t *testing.T) {
	l := newTestLoader(t)
	l.Attach(1, "/media/a.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)
	l.Cancel(1)

	if l.cache.Len() != 0 {
		t.Errorf("cache.Len() = %d, want 0 after cancel of a queued request", l.cache.Len())
	}
	if l.queues[queueLookupNormal].Len() != 0 {
		t.Errorf("lookup_normal depth = %d, want 0 after cancel", l.queues[queueLookupNormal].Len())
	}
}

func TestDequeueOrderRespectsPriority(t *testing.T) {
	l := newTestLoader(t)
	l.Attach(1, "/media/low.jpg", 256, 256, true, requestcache.Low, "image/jpeg", true)
	l.Attach(2, "/media/high.jpg", 256, 256, true, requestcache.High, "image/jpeg", true)
	l.Attach(3, "/media/normal.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)

	l.mu.Lock()
	req, name := l.dequeueLocked()
	l.mu.Unlock()

	if name != queueLookupHigh {
		t.Fatalf("dequeued from %q, want %q", name, queueLookupHigh)
	}
	if req.SourcePath != "/media/high.jpg" {
		t.Errorf("dequeued %s, want the high priority request", req.SourcePath)
	}
}

func TestResumeReschedulesSubscribedCompletedRequests(t *testing.T) {
	l := newTestLoader(t)
	key := cachekey.Derive("/media/a.jpg", sizeladder.Medium, true)
	req, _ := l.cache.Attach(key, "/media/a.jpg", "image/jpeg", sizeladder.Medium, true, requestcache.Subscriber{ID: 1, Priority: requestcache.Normal})
	req.State = requestcache.Completed
	req.CacheCost = 256 * 256
	l.cache.RenewOnCompletion(req)

	l.Suspend()
	l.Resume()

	if req.State != requestcache.QueuedLookup {
		t.Errorf("state = %v, want QueuedLookup after resume", req.State)
	}
	if l.queues[queueLookupNormal].Len() != 1 {
		t.Errorf("lookup_normal depth = %d, want 1 after resume", l.queues[queueLookupNormal].Len())
	}
	if l.cache.RetainedCount() != 0 {
		t.Errorf("RetainedCount() = %d, want 0 after requeue", l.cache.RetainedCount())
	}
}

func TestEndToEndAttachGeneratesAndDelivers(t *testing.T) {
	deliver := &testDeliver{}
	l := New(Config{
		CacheRoot: t.TempDir(),
		Ladder:    sizeladder.NewLadder(540, 960),
		Deliver:   deliver,
	})
	l.SetGenerator(&fakeGenerator{img: fakeImage(64, 64)})
	l.Start()
	defer l.Stop()

	l.Attach(1, "/media/does-not-exist.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)

	select {
	case <-l.WakeCh():
		l.DrainCompletions()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker to complete the request")
	}

	if deliver.count() != 1 {
		t.Fatalf("delivery count = %d, want 1", deliver.count())
	}
	ev := deliver.last()
	if ev.status != requestcache.Completed {
		t.Errorf("status = %v, want Completed", ev.status)
	}
	if ev.result.Width != 64 || ev.result.Height != 64 {
		t.Errorf("result size = %dx%d, want 64x64", ev.result.Width, ev.result.Height)
	}
}

func TestEndToEndGeneratorFailureDeliversFailed(t *testing.T) {
	deliver := &testDeliver{}
	l := New(Config{
		CacheRoot: t.TempDir(),
		Ladder:    sizeladder.NewLadder(540, 960),
		Deliver:   deliver,
	})
	l.SetGenerator(&fakeGenerator{err: errBoom})
	l.Start()
	defer l.Stop()

	l.Attach(1, "/media/bad.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)

	select {
	case <-l.WakeCh():
		l.DrainCompletions()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker to fail the request")
	}

	if deliver.count() != 1 {
		t.Fatalf("delivery count = %d, want 1", deliver.count())
	}
	if deliver.last().status != requestcache.Failed {
		t.Errorf("status = %v, want Failed", deliver.last().status)
	}
	if deliver.last().result.Err != requestcache.GeneratorFailed {
		t.Errorf("error kind = %v, want GeneratorFailed", deliver.last().result.Err)
	}
}

// TestImmediateDeliverOnlyNotifiesNewSubscriber guards against redelivering
// to every pre-existing subscriber of a popular cached request just
// because a new subscriber joined it after completion.
func TestImmediateDeliverOnlyNotifiesNewSubscriber(t *testing.T) {
	deliver := &testDeliver{}
	l := New(Config{
		CacheRoot: t.TempDir(),
		Ladder:    sizeladder.NewLadder(540, 960),
		Deliver:   deliver,
	})
	l.SetGenerator(&fakeGenerator{img: fakeImage(64, 64)})
	l.Start()
	defer l.Stop()

	for id := requestcache.SubscriberID(1); id <= 5; id++ {
		l.Attach(id, "/media/popular.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)
	}

	select {
	case <-l.WakeCh():
		l.DrainCompletions()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker to complete the request")
	}

	if deliver.count() != 5 {
		t.Fatalf("delivery count after initial completion = %d, want 5", deliver.count())
	}

	l.Attach(6, "/media/popular.jpg", 256, 256, true, requestcache.Normal, "image/jpeg", true)

	select {
	case <-l.WakeCh():
		l.DrainCompletions()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the immediate-deliver wake")
	}

	if deliver.count() != 6 {
		t.Fatalf("delivery count after late attach = %d, want 6 (no redelivery to ids 1-5)", deliver.count())
	}
	if deliver.last().id != 6 {
		t.Errorf("last delivery id = %d, want 6", deliver.last().id)
	}
}

func TestAttachWithNonPositiveSizeFailsWithoutSelecting(t *testing.T) {
	deliver := &testDeliver{}
	l := New(Config{
		CacheRoot: t.TempDir(),
		Ladder:    sizeladder.NewLadder(540, 960),
		Deliver:   deliver,
	})

	l.Attach(1, "/media/a.jpg", 0, 0, true, requestcache.Normal, "image/jpeg", true)

	select {
	case <-l.WakeCh():
		l.DrainCompletions()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the invalid-size delivery")
	}

	if deliver.count() != 1 {
		t.Fatalf("delivery count = %d, want 1", deliver.count())
	}
	if deliver.last().status != requestcache.Failed {
		t.Errorf("status = %v, want Failed", deliver.last().status)
	}
	if deliver.last().result.Err != requestcache.InvalidSizeSelection {
		t.Errorf("error kind = %v, want InvalidSizeSelection", deliver.last().result.Err)
	}
	if l.cache.Len() != 0 {
		t.Errorf("cache.Len() = %d, want 0 (no request should be created for an invalid size)", l.cache.Len())
	}
}
