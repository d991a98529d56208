package metrics

import "testing"

func TestGenerationMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"GenerationsTotal", GenerationsTotal},
		{"GenerationDuration", GenerationDuration},
		{"PassThroughTotal", PassThroughTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestDiskStoreMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"CacheHits", CacheHits},
		{"CacheMisses", CacheMisses},
		{"DiskWriteErrors", DiskWriteErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestRequestCacheMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"CacheCostBytes", CacheCostBytes},
		{"CacheEntries", CacheEntries},
		{"EvictionsTotal", EvictionsTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestLoaderMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"QueueDepth", QueueDepth},
		{"Suspended", Suspended},
		{"RequestsInFlight", RequestsInFlight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestMemoryMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"MemoryUsageRatio", MemoryUsageRatio},
		{"MemoryPaused", MemoryPaused},
		{"MemoryGCPauses", MemoryGCPauses},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestQueueDepthLabels(t *testing.T) {
	InitializeMetrics()
	for _, queue := range []string{
		"lookup_high", "lookup_normal", "lookup_low",
		"generate_high", "generate_normal", "generate_low",
	} {
		QueueDepth.WithLabelValues(queue).Set(0)
	}
}

func TestGenerationLabelCombinations(t *testing.T) {
	InitializeMetrics()
	for _, kind := range []string{"image", "video", "pdf"} {
		GenerationsTotal.WithLabelValues(kind, "success").Add(0)
		GenerationsTotal.WithLabelValues(kind, "error").Add(0)
	}
}

func TestAppInfoSettable(t *testing.T) {
	SetAppInfo("test", "abcdef", "go1.25")
}
