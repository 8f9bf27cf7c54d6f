package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.CacheHit("embedding")
	r.CacheHit("embedding")
	r.CacheMiss("search")
	r.UpstreamError("generation")
	r.ObserveStageLatency("retrieval", 50*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheHits.WithLabelValues("embedding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheMisses.WithLabelValues("search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.upstreamErrors.WithLabelValues("generation")))

	// All four collectors are registered.
	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.Len(t, families, 4)
}
