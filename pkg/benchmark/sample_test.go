package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImprovementPercent(t *testing.T) {
	t.Run("TimeMetricHalvedIsFiftyPercent", func(t *testing.T) {
		s := Sample{Category: CategoryEndToEnd, Metric: "avg_response_time", Baseline: 4.0, Optimized: 2.0}
		assert.InDelta(t, 50.0, s.ImprovementPercent(), 1e-9)
	})

	t.Run("ThroughputUpByHalfIsFiftyPercent", func(t *testing.T) {
		s := Sample{Category: CategoryEmbedding, Metric: "throughput", Baseline: 10, Optimized: 15}
		assert.InDelta(t, 50.0, s.ImprovementPercent(), 1e-9)
	})

	t.Run("LatencyCountsAsTimeMetric", func(t *testing.T) {
		s := Sample{Metric: "p99_latency", Baseline: 1.0, Optimized: 0.5}
		assert.InDelta(t, 50.0, s.ImprovementPercent(), 1e-9)
	})

	t.Run("RegressionsAreNegative", func(t *testing.T) {
		slower := Sample{Metric: "total_time", Baseline: 2.0, Optimized: 4.0}
		assert.InDelta(t, -100.0, slower.ImprovementPercent(), 1e-9)

		lessThroughput := Sample{Metric: "queries_per_second", Baseline: 10, Optimized: 5}
		assert.InDelta(t, -50.0, lessThroughput.ImprovementPercent(), 1e-9)
	})

	t.Run("ZeroBaselineYieldsZero", func(t *testing.T) {
		s := Sample{Metric: "throughput", Baseline: 0, Optimized: 15}
		assert.Zero(t, s.ImprovementPercent())
	})
}
