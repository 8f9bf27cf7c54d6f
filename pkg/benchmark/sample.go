// Package benchmark measures the cached pipeline against an uncached baseline
// and scores the result against declared performance targets.
package benchmark

import "strings"

// Category identifies a benchmarked pipeline stage.
type Category string

const (
	CategoryEmbedding Category = "embedding"
	CategorySearch    Category = "search"
	CategoryEndToEnd  Category = "end_to_end"
)

// Sample is one metric measured under both the baseline and the optimized
// pipeline.
type Sample struct {
	Category  Category `json:"category"`
	Metric    string   `json:"metric"`
	Baseline  float64  `json:"baseline"`
	Optimized float64  `json:"optimized"`
}

// ImprovementPercent returns the signed improvement of optimized over
// baseline. Time-like metrics improve by shrinking, rate-like metrics by
// growing; both conventions yield positive values for genuine improvements.
// A zero baseline yields 0 rather than a division blowup.
func (s Sample) ImprovementPercent() float64 {
	if s.Baseline == 0 {
		return 0
	}
	if isTimeMetric(s.Metric) {
		return (s.Baseline - s.Optimized) / s.Baseline * 100
	}
	return (s.Optimized - s.Baseline) / s.Baseline * 100
}

// isTimeMetric classifies a metric by name: anything mentioning time or
// latency is lower-is-better; everything else (throughput, qps, rates) is
// higher-is-better.
func isTimeMetric(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "time") || strings.Contains(lower, "latency")
}
