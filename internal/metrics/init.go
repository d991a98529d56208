package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"image", "video", "pdf"} {
		GenerationDuration.WithLabelValues(kind)
		GenerationsTotal.WithLabelValues(kind, "success")
		GenerationsTotal.WithLabelValues(kind, "error")
	}

	for _, queue := range []string{
		"lookup_high", "lookup_normal", "lookup_low",
		"generate_high", "generate_normal", "generate_low",
	} {
		QueueDepth.WithLabelValues(queue)
	}
}
