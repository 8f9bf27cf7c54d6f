// Package metrics exposes Prometheus instrumentation for the caching and
// retrieval pipeline. Components record through the Recorder interface so
// tests can substitute a no-op.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives cache and pipeline events.
type Recorder interface {
	CacheHit(cache string)
	CacheMiss(cache string)
	UpstreamError(service string)
	ObserveStageLatency(stage string, d time.Duration)
}

// PrometheusRecorder implements Recorder on Prometheus collectors.
type PrometheusRecorder struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder and registers its collectors with
// reg. A nil reg registers with the process-wide default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache tier.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache tier.",
		}, []string{"cache"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "legalrag",
			Name:      "upstream_errors_total",
			Help:      "Failed upstream service calls by service.",
		}, []string{"service"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "legalrag",
			Name:      "stage_latency_seconds",
			Help:      "Latency of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
	}

	reg.MustRegister(r.cacheHits, r.cacheMisses, r.upstreamErrors, r.stageLatency)
	return r
}

func (r *PrometheusRecorder) CacheHit(cache string)  { r.cacheHits.WithLabelValues(cache).Inc() }
func (r *PrometheusRecorder) CacheMiss(cache string) { r.cacheMisses.WithLabelValues(cache).Inc() }

func (r *PrometheusRecorder) UpstreamError(service string) {
	r.upstreamErrors.WithLabelValues(service).Inc()
}

func (r *PrometheusRecorder) ObserveStageLatency(stage string, d time.Duration) {
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// Noop discards every event.
type Noop struct{}

func (Noop) CacheHit(string)                           {}
func (Noop) CacheMiss(string)                          {}
func (Noop) UpstreamError(string)                      {}
func (Noop) ObserveStageLatency(string, time.Duration) {}
