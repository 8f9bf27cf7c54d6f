package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// CategoryResult holds the measured metrics of one category under both
// pipelines, plus the derived improvement for every metric measured on both
// sides. Metrics present on only one side (such as cache hit rates, which
// the baseline has no equivalent of) are reported but not compared.
type CategoryResult struct {
	Baseline        map[string]float64 `json:"baseline"`
	Optimized       map[string]float64 `json:"optimized"`
	ImprovementPct  map[string]float64 `json:"improvement_percent"`
	BaselineErrors  int                `json:"baseline_errors"`
	OptimizedErrors int                `json:"optimized_errors"`
}

func newCategoryResult() *CategoryResult {
	return &CategoryResult{
		Baseline:       make(map[string]float64),
		Optimized:      make(map[string]float64),
		ImprovementPct: make(map[string]float64),
	}
}

// Results is the full benchmark report, serializable as a single JSON
// document.
type Results struct {
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Categories map[Category]*CategoryResult `json:"categories"`
}

// NewResults returns an empty report stamped with the current time.
func NewResults() *Results {
	return &Results{
		StartedAt:  time.Now(),
		Categories: make(map[Category]*CategoryResult),
	}
}

// Category returns the result bucket for a category, creating it on first
// use.
func (r *Results) Category(category Category) *CategoryResult {
	cr, ok := r.Categories[category]
	if !ok {
		cr = newCategoryResult()
		r.Categories[category] = cr
	}
	return cr
}

// finish stamps the end time and computes improvements for every metric
// measured under both pipelines.
func (r *Results) finish() {
	r.FinishedAt = time.Now()
	for category, cr := range r.Categories {
		for metric, baseline := range cr.Baseline {
			optimized, ok := cr.Optimized[metric]
			if !ok {
				continue
			}
			sample := Sample{Category: category, Metric: metric, Baseline: baseline, Optimized: optimized}
			cr.ImprovementPct[metric] = sample.ImprovementPercent()
		}
	}
}

// Samples flattens the report into comparable samples, ordered by category
// and metric name for stable output.
func (r *Results) Samples() []Sample {
	var samples []Sample
	for category, cr := range r.Categories {
		for metric, baseline := range cr.Baseline {
			optimized, ok := cr.Optimized[metric]
			if !ok {
				continue
			}
			samples = append(samples, Sample{
				Category:  category,
				Metric:    metric,
				Baseline:  baseline,
				Optimized: optimized,
			})
		}
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Category != samples[j].Category {
			return samples[i].Category < samples[j].Category
		}
		return samples[i].Metric < samples[j].Metric
	})
	return samples
}

// OptimizedMetrics returns the optimized-side measurements keyed by category,
// the shape the scorer consumes.
func (r *Results) OptimizedMetrics() map[Category]map[string]float64 {
	metrics := make(map[Category]map[string]float64, len(r.Categories))
	for category, cr := range r.Categories {
		metrics[category] = cr.Optimized
	}
	return metrics
}

// Save writes the report as indented JSON.
func (r *Results) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode benchmark results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write benchmark results: %w", err)
	}
	return nil
}
