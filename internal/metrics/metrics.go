package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Generation metrics
var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_generations_total",
			Help: "Total number of Generator invocations by mime class and outcome",
		},
		[]string{"kind", "status"}, // kind: image, video, pdf; status: success, error
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nemo_thumbnailer_generation_duration_seconds",
			Help:    "Generator invocation duration in seconds by mime class",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	PassThroughTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_passthrough_total",
			Help: "Total number of image requests resolved by the pass-through shortcut (decoded without scaling, no cache write)",
		},
	)
)

// Disk store metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_cache_hits_total",
			Help: "Total number of disk-store lookup hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_cache_misses_total",
			Help: "Total number of disk-store lookup misses (stale or absent entries)",
		},
	)

	DiskWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_disk_write_errors_total",
			Help: "Total number of failed disk-store writes (CacheWriteFailed)",
		},
	)
)

// Request cache / eviction metrics. These are registered only: no package
// in this module sets or increments them, so they report zero.
var (
	CacheCostBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_cache_cost_pixels",
			Help: "Current sum of cache_cost (width*height) across cached_completed requests",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_cache_entries",
			Help: "Current number of requests retained in cached_completed",
		},
	)

	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_evictions_total",
			Help: "Total number of cached_completed entries evicted to respect max_cost",
		},
	)
)

// Loader metrics
var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_queue_depth",
			Help: "Current number of requests waiting in each priority queue",
		},
		[]string{"queue"}, // lookup_high, lookup_normal, lookup_low, generate_high, generate_normal, generate_low
	)

	Suspended = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_suspended",
			Help: "Whether the loader's worker is currently suspended (1) or running (0)",
		},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_requests_in_flight",
			Help: "Number of thumbnail HTTP requests thumbnaild is currently serving",
		},
	)
)

// Memory metrics, unchanged in shape from the teacher's memory backpressure monitor.
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_memory_usage_ratio",
			Help: "Current heap allocation as a ratio of the configured memory limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nemo_thumbnailer_memory_paused",
			Help: "Whether thumbnail generation is paused due to memory pressure (1) or not (0)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nemo_thumbnailer_memory_gc_pauses_total",
			Help: "Total number of times generation was paused for memory pressure",
		},
	)
)

// AppInfo exposes build information.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "nemo_thumbnailer_app_info",
		Help: "Application information",
	},
	[]string{"version", "commit", "go_version"},
)

// SetAppInfo sets the application info metric.
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
