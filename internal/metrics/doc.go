// Package metrics provides Prometheus instrumentation for the thumbnail
// loader, in the same per-concern promauto style as the rest of this
// module's ambient stack. All metrics are prefixed with
// "nemo_thumbnailer_" to avoid collisions with other exporters on a
// shared scrape endpoint.
//
// # Metric categories
//
//   - Generation: counts and durations of Generator invocations, broken
//     down by mime class (image/video/pdf) and outcome.
//   - Disk store: cache hit/miss counts for the lookup stage, and write
//     error counts.
//   - Request cache: current pixel-cost budget usage, retained entry
//     count, and eviction counts. These are registered but nothing in
//     the module updates them, so they stay at zero.
//   - Loader: per-queue depth gauges (one per priority queue) and the
//     suspend/resume state gauge.
//   - Memory: the same GOMEMLIMIT/backpressure gauges as the teacher
//     module, reused unchanged by internal/memory.
//
// # Usage
//
// Metrics are registered with the default Prometheus registry via
// promauto. Mount promhttp.Handler() on a metrics endpoint to expose them:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Example PromQL queries:
//
//	# Cache hit rate
//	rate(nemo_thumbnailer_cache_hits_total[5m]) /
//	(rate(nemo_thumbnailer_cache_hits_total[5m]) + rate(nemo_thumbnailer_cache_misses_total[5m]))
//
//	# Generation success rate by kind
//	sum(rate(nemo_thumbnailer_generations_total{status="success"}[5m])) by (kind) /
//	sum(rate(nemo_thumbnailer_generations_total[5m])) by (kind)
//
//	# Queue backlog
//	sum(nemo_thumbnailer_queue_depth) by (queue)
package metrics
