package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselens/legalrag/pkg/rag"
)

// benchEmbedder returns fixed-size vectors and counts calls.
type benchEmbedder struct {
	calls atomic.Int64
	fail  bool
}

func (e *benchEmbedder) Embed(_ context.Context, texts []string) (*rag.EmbeddingResult, error) {
	e.calls.Add(1)
	if e.fail {
		return nil, errors.New("embedding unavailable")
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, 12)
		for j := range vec {
			vec[j] = float32(len(texts[i]) + j)
		}
		embeddings[i] = vec
	}
	return &rag.EmbeddingResult{Embeddings: embeddings, Dimension: 12}, nil
}

func (e *benchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	result, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return result.Embeddings[0], nil
}

type benchSearcher struct {
	calls atomic.Int64
	fail  bool
}

func (s *benchSearcher) Search(_ context.Context, vector []float32, topK int, namespace string) ([]rag.Match, error) {
	s.calls.Add(1)
	if s.fail {
		return nil, errors.New("store unavailable")
	}
	return []rag.Match{{ID: "hit", Score: 0.9}}, nil
}

type benchAnswerer struct {
	calls atomic.Int64
	fail  bool
}

func (a *benchAnswerer) Answer(_ context.Context, question string) (string, error) {
	a.calls.Add(1)
	if a.fail {
		return "", errors.New("generation unavailable")
	}
	return "answer to " + question, nil
}

func testWorkload() Workload {
	return Workload{
		Texts:     []string{"계약 해지", "손해배상 청구", "임금 체불"},
		Queries:   []string{"해고 요건", "부당해고 구제"},
		Questions: []string{"퇴직금은 언제 지급되나요?"},
		TopK:      3,
	}
}

func testStacks() (Stack, Stack, *benchEmbedder, *benchEmbedder) {
	baselineEmbedder := &benchEmbedder{}
	optimizedEmbedder := &benchEmbedder{}
	baseline := Stack{
		Embedder: baselineEmbedder,
		Searcher: &benchSearcher{},
		Answerer: &benchAnswerer{},
	}
	optimized := Stack{
		Embedder: optimizedEmbedder,
		Searcher: &benchSearcher{},
		Answerer: &benchAnswerer{},
	}
	return baseline, optimized, baselineEmbedder, optimizedEmbedder
}

func TestHarnessRun(t *testing.T) {
	ctx := context.Background()

	t.Run("MeasuresAllCategories", func(t *testing.T) {
		baseline, optimized, _, _ := testStacks()
		h := NewHarness(baseline, optimized, DefaultConfig(), nil)

		results, err := h.Run(ctx, testWorkload())
		require.NoError(t, err)

		for _, category := range []Category{CategoryEmbedding, CategorySearch, CategoryEndToEnd} {
			cr := results.Categories[category]
			require.NotNil(t, cr, "category %s missing", category)
			assert.Contains(t, cr.Baseline, "total_time")
			assert.Contains(t, cr.Optimized, "total_time")
			assert.Contains(t, cr.ImprovementPct, "total_time")
		}
		assert.Contains(t, results.Categories[CategoryEmbedding].Baseline, "throughput")
		assert.Contains(t, results.Categories[CategorySearch].Optimized, "queries_per_second")
		assert.Contains(t, results.Categories[CategoryEndToEnd].Optimized, "avg_response_time")
		assert.False(t, results.FinishedAt.Before(results.StartedAt))
	})

	t.Run("BaselineEmbedsPerTextOptimizedBatches", func(t *testing.T) {
		baseline, optimized, baselineEmbedder, optimizedEmbedder := testStacks()
		h := NewHarness(baseline, optimized, Config{Concurrency: 3, WarmPasses: 2}, nil)

		workload := testWorkload()
		_, err := h.Run(ctx, workload)
		require.NoError(t, err)

		texts := int64(len(workload.Texts))
		queries := int64(len(workload.Queries))
		assert.Equal(t, texts, baselineEmbedder.calls.Load(),
			"baseline issues one call per text")
		// Two batched passes plus one EmbedQuery per search query.
		assert.Equal(t, 2+queries, optimizedEmbedder.calls.Load())
	})

	t.Run("CachedWrapperReportsHitRate", func(t *testing.T) {
		baseline, optimized, _, optimizedEmbedder := testStacks()
		optimized.Embedder = rag.NewCachedEmbedder(optimizedEmbedder, rag.DefaultEmbedderConfig(), nil, nil, nil)
		h := NewHarness(baseline, optimized, Config{Concurrency: 3, WarmPasses: 2}, nil)

		results, err := h.Run(ctx, testWorkload())
		require.NoError(t, err)

		embedding := results.Categories[CategoryEmbedding]
		hitRate, ok := embedding.Optimized["cache_hit_rate"]
		require.True(t, ok)
		assert.Greater(t, hitRate, 0.0, "warm pass must produce cache hits")
		assert.NotContains(t, embedding.ImprovementPct, "cache_hit_rate",
			"one-sided metrics are not compared")
	})

	t.Run("CategoryFailureDoesNotAbortOthers", func(t *testing.T) {
		baseline, optimized, _, _ := testStacks()
		baseline.Searcher = &benchSearcher{fail: true}
		optimized.Searcher = &benchSearcher{fail: true}
		h := NewHarness(baseline, optimized, DefaultConfig(), nil)

		results, err := h.Run(ctx, testWorkload())
		require.NoError(t, err)

		search := results.Categories[CategorySearch]
		assert.Positive(t, search.BaselineErrors+search.OptimizedErrors)
		assert.Contains(t, results.Categories[CategoryEmbedding].Baseline, "throughput")
		assert.Contains(t, results.Categories[CategoryEndToEnd].Baseline, "avg_response_time")
	})

	t.Run("CancelledContextStopsIssuingWork", func(t *testing.T) {
		baseline, optimized, baselineEmbedder, _ := testStacks()
		h := NewHarness(baseline, optimized, DefaultConfig(), nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := h.Run(cancelled, testWorkload())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, baselineEmbedder.calls.Load())
	})
}

func TestResultsReport(t *testing.T) {
	t.Run("SamplesAreSortedAndTwoSided", func(t *testing.T) {
		results := NewResults()
		cr := results.Category(CategorySearch)
		cr.Baseline["total_time"] = 2.0
		cr.Baseline["avg_search_time"] = 0.2
		cr.Optimized["total_time"] = 1.0
		cr.Optimized["cache_hit_rate"] = 0.5
		results.finish()

		samples := results.Samples()
		require.Len(t, samples, 1, "avg_search_time and cache_hit_rate are one-sided")
		assert.Equal(t, "total_time", samples[0].Metric)
		assert.InDelta(t, 50.0, samples[0].ImprovementPercent(), 1e-9)
	})

	t.Run("SaveWritesReadableJSON", func(t *testing.T) {
		results := NewResults()
		results.Category(CategoryEmbedding).Optimized["throughput"] = 12.5
		results.finish()

		path := filepath.Join(t.TempDir(), "results.json")
		require.NoError(t, results.Save(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var decoded Results
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.InDelta(t, 12.5, decoded.Categories[CategoryEmbedding].Optimized["throughput"], 1e-9)
	})

	t.Run("OptimizedMetricsFeedTheScorer", func(t *testing.T) {
		results := NewResults()
		results.Category(CategorySearch).Optimized["queries_per_second"] = 40
		results.finish()

		score := ScoreResults(results.OptimizedMetrics(), DefaultTargets())
		assert.InDelta(t, 100.0, score.Categories[CategorySearch], 1e-9)
	})
}

func TestHarnessDefaults(t *testing.T) {
	h := NewHarness(Stack{}, Stack{}, Config{}, nil)
	assert.Equal(t, 3, h.config.Concurrency)
	assert.Equal(t, 2, h.config.WarmPasses)

	// Empty stacks produce an empty but well-formed report.
	results, err := h.Run(context.Background(), Workload{})
	require.NoError(t, err)
	for _, cr := range results.Categories {
		assert.Empty(t, cr.Baseline)
	}
}
