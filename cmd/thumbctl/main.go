package main

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/config"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/generator"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/loader"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/memory"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/workers"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("thumbctl: %v", err)
	}

	switch os.Args[1] {
	case "warm":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		runWarm(cfg, os.Args[2])
	case "prune":
		maxAge := 30 * 24 * time.Hour
		if len(os.Args) > 2 {
			if days, err := strconv.Atoi(os.Args[2]); err == nil {
				maxAge = time.Duration(days) * 24 * time.Hour
			}
		}
		runPrune(cfg.CacheDir, maxAge)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  thumbctl warm <directory>")
	fmt.Fprintln(os.Stderr, "  thumbctl prune [max-age-days]")
}

// warmDeliver collects completions from a warm run just long enough to
// release each in-flight slot; it never holds onto results.
type warmDeliver struct {
	mu      sync.Mutex
	waiters map[requestcache.SubscriberID]chan struct{}
	ok      atomic.Int64
	failed  atomic.Int64
}

func newWarmDeliver() *warmDeliver {
	return &warmDeliver{waiters: make(map[requestcache.SubscriberID]chan struct{})}
}

func (d *warmDeliver) register(id requestcache.SubscriberID) <-chan struct{} {
	ch := make(chan struct{}, 1)
	d.mu.Lock()
	d.waiters[id] = ch
	d.mu.Unlock()
	return ch
}

func (d *warmDeliver) OnDeliver(id requestcache.SubscriberID, status requestcache.Status, result requestcache.Result) {
	if status == requestcache.Failed {
		d.failed.Add(1)
	} else {
		d.ok.Add(1)
	}

	d.mu.Lock()
	ch, found := d.waiters[id]
	if found {
		delete(d.waiters, id)
	}
	d.mu.Unlock()

	if found {
		ch <- struct{}{}
	}
}

func runWarm(cfg *config.Config, root string) {
	mon := memory.NewMonitor(memory.DefaultConfig())
	mon.Start()
	defer mon.Stop()

	deliver := newWarmDeliver()
	ldr := loader.New(loader.Config{
		CacheRoot:   cfg.CacheDir,
		MaxCost:     cfg.CacheCost,
		Ladder:      cfg.Ladder,
		VideoHelper: cfg.VideoHelper,
		PDFHelper:   cfg.PDFHelper,
		Deliver:     deliver,
		Memory:      mon,
	})
	if cfg.FastDecode {
		generator.InitVips()
		defer generator.ShutdownVips()
		ldr.SetGenerator(generator.NewFastDispatcher(cfg.VideoHelper, cfg.PDFHelper, mon))
	}

	ldr.Start()
	defer ldr.Stop()

	go func() {
		for range ldr.WakeCh() {
			ldr.DrainCompletions()
		}
	}()

	concurrency := workers.ForMixed(16)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var nextID atomic.Uint64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("thumbctl: walk %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			return nil
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(path, mimeType string) {
			defer wg.Done()
			defer func() { <-sem }()

			id := requestcache.SubscriberID(nextID.Add(1))
			done := deliver.register(id)
			ldr.Attach(id, path, int(cfg.Ladder.ScreenShort), int(cfg.Ladder.ScreenShort), true, requestcache.Low, mimeType, true)

			select {
			case <-done:
			case <-time.After(60 * time.Second):
				logging.Warn("thumbctl: warm timed out for %s", path)
			}
			ldr.Cancel(id)
		}(path, mimeType)

		return nil
	})
	if err != nil {
		logging.Fatal("thumbctl: walk %s: %v", root, err)
	}

	wg.Wait()
	logging.Info("thumbctl: warm complete: %d generated, %d failed", deliver.ok.Load(), deliver.failed.Load())
}

func runPrune(cacheDir string, maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	var removed int64
	var scanned int64

	err := filepath.WalkDir(cacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		scanned++

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				logging.Warn("thumbctl: remove %s: %v", path, err)
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		logging.Fatal("thumbctl: prune %s: %v", cacheDir, err)
	}

	logging.Info("thumbctl: prune complete: removed %d of %d scanned entries older than %v", removed, scanned, maxAge)
}
