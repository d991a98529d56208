package main

import (
	"context"
	"errors"
	"image/jpeg"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/config"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/generator"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/loader"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/memory"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/metrics"
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/requestcache"
)

const requestTimeout = 30 * time.Second

// server adapts the loader's async Attach/Deliver contract to a synchronous
// HTTP handler: each request attaches a single-use subscriber, blocks on a
// channel until OnDeliver fires for it, and replies with the thumbnail.
type server struct {
	ldr     *loader.Loader
	nextID  atomic.Uint64
	mu      sync.Mutex
	waiters map[requestcache.SubscriberID]chan requestcache.Result
}

func newServer(ldr *loader.Loader) *server {
	return &server{
		ldr:     ldr,
		waiters: make(map[requestcache.SubscriberID]chan requestcache.Result),
	}
}

// OnDeliver implements loader.Deliver.
func (s *server) OnDeliver(id requestcache.SubscriberID, status requestcache.Status, result requestcache.Result) {
	s.mu.Lock()
	ch, ok := s.waiters[id]
	if ok {
		delete(s.waiters, id)
	}
	s.mu.Unlock()

	if ok {
		ch <- result
	}
}

func (s *server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		http.Error(w, "missing path query parameter", http.StatusBadRequest)
		return
	}

	width := queryInt(q, "w", 256)
	height := queryInt(q, "h", width)
	crop := q.Get("crop") == "true"
	unbounded := q.Get("unbounded") != "false"
	mimeHint := q.Get("mime")

	requestID := uuid.New().String()
	id := requestcache.SubscriberID(s.nextID.Add(1))

	ch := make(chan requestcache.Result, 1)
	s.mu.Lock()
	s.waiters[id] = ch
	s.mu.Unlock()

	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()

	logging.Debug("thumbnaild: request %s attach id=%d path=%s %dx%d crop=%v", requestID, id, path, width, height, crop)
	s.ldr.Attach(id, path, width, height, crop, requestcache.Normal, mimeHint, unbounded)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	select {
	case res := <-ch:
		if res.Err != requestcache.NoError {
			logging.Warn("thumbnaild: request %s failed: %s (%s)", requestID, res.Err, res.ErrText)
			http.Error(w, "thumbnail generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Request-Id", requestID)
		if err := jpeg.Encode(w, res.Image, &jpeg.Options{Quality: 90}); err != nil {
			logging.Warn("thumbnaild: request %s encode response: %v", requestID, err)
		}
	case <-ctx.Done():
		s.cancelWaiter(id)
		s.ldr.Cancel(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			http.Error(w, "timed out waiting for thumbnail", http.StatusGatewayTimeout)
		}
	}
}

func (s *server) cancelWaiter(id requestcache.SubscriberID) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

func queryInt(q map[string][]string, key string, def int) int {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return def
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func main() {
	start := time.Now()
	memory.ConfigureFromEnv()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("thumbnaild: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(config.Version, config.Commit, config.GoVersion)

	mon := memory.NewMonitor(memory.DefaultConfig())
	mon.Start()
	defer mon.Stop()

	srv := newServer(nil)
	ldr := loader.New(loader.Config{
		CacheRoot:   cfg.CacheDir,
		MaxCost:     cfg.CacheCost,
		Ladder:      cfg.Ladder,
		VideoHelper: cfg.VideoHelper,
		PDFHelper:   cfg.PDFHelper,
		Deliver:     srv,
		Memory:      mon,
	})
	if cfg.FastDecode {
		generator.InitVips()
		defer generator.ShutdownVips()
		ldr.SetGenerator(generator.NewFastDispatcher(cfg.VideoHelper, cfg.PDFHelper, mon))
	}

	srv.ldr = ldr
	ldr.Start()
	defer ldr.Stop()

	go drainLoop(ldr)

	router := mux.NewRouter()
	router.HandleFunc("/thumbnail", srv.handleThumbnail).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	httpSrv := &http.Server{
		Addr:    ":" + getEnv("THUMBNAIL_HTTP_PORT", "8080"),
		Handler: router,
	}

	config.StartupBanner(time.Since(start))
	logging.Info("thumbnaild: listening on %s", httpSrv.Addr)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("thumbnaild: serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logging.Info("thumbnaild: shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("thumbnaild: http shutdown: %v", err)
	}
	logging.Info("thumbnaild: shutdown complete")
}

// drainLoop calls DrainCompletions every time the loader wakes the
// requester thread, standing in for whatever event loop a real host would
// pump this through.
func drainLoop(ldr *loader.Loader) {
	for range ldr.WakeCh() {
		ldr.DrainCompletions()
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
