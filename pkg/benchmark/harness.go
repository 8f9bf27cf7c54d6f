package benchmark

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caselens/legalrag/pkg/rag"
)

// Answerer is the end-to-end surface the harness exercises: a question in,
// an answer out. *rag.Pipeline satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Stack bundles the three client surfaces of one pipeline variant. The
// baseline stack carries raw clients; the optimized stack carries the cached
// wrappers around the same clients.
type Stack struct {
	Embedder rag.Embedder
	Searcher rag.Searcher
	Answerer Answerer
}

// Workload is the fixed input set replayed against both stacks.
type Workload struct {
	Texts     []string `json:"texts"`
	Queries   []string `json:"queries"`
	Questions []string `json:"questions"`
	TopK      int      `json:"top_k"`
	Namespace string   `json:"namespace"`
}

// Config bounds the harness.
type Config struct {
	// Concurrency caps in-flight requests within one measurement pass.
	Concurrency int `json:"concurrency"`
	// WarmPasses is how many times the optimized stack replays each input.
	// The first pass is cold, later passes measure cache effectiveness.
	WarmPasses int `json:"warm_passes"`
}

// DefaultConfig returns the production harness parameters.
func DefaultConfig() Config {
	return Config{
		Concurrency: 3,
		WarmPasses:  2,
	}
}

// hitRater is implemented by cached wrappers that can report their hit rate.
type hitRater interface {
	HitRate() float64
}

// Harness replays one workload through the baseline and optimized stacks and
// reports per-category timings. Categories are measured independently:
// failures in one category are counted and do not abort the others.
type Harness struct {
	baseline  Stack
	optimized Stack
	config    Config
	logger    *slog.Logger
}

// NewHarness builds a harness over the two stacks.
func NewHarness(baseline, optimized Stack, config Config, logger *slog.Logger) *Harness {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if config.WarmPasses <= 0 {
		config.WarmPasses = DefaultConfig().WarmPasses
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		baseline:  baseline,
		optimized: optimized,
		config:    config,
		logger:    logger.With("component", "benchmark-harness"),
	}
}

// Run measures all three categories and returns the assembled report. A
// cancelled context stops the harness from issuing new requests; whatever was
// measured before cancellation is still reported alongside ctx.Err().
func (h *Harness) Run(ctx context.Context, workload Workload) (*Results, error) {
	if workload.TopK <= 0 {
		workload.TopK = 3
	}

	results := NewResults()

	h.runEmbedding(ctx, workload, results.Category(CategoryEmbedding))
	h.runSearch(ctx, workload, results.Category(CategorySearch))
	h.runEndToEnd(ctx, workload, results.Category(CategoryEndToEnd))

	results.finish()

	h.logger.Info("benchmark complete",
		"duration", results.FinishedAt.Sub(results.StartedAt),
		"categories", len(results.Categories),
	)
	return results, ctx.Err()
}

// runEmbedding compares per-text baseline calls against batched, cached
// optimized calls.
func (h *Harness) runEmbedding(ctx context.Context, workload Workload, result *CategoryResult) {
	if len(workload.Texts) == 0 || h.baseline.Embedder == nil || h.optimized.Embedder == nil {
		return
	}

	// Baseline embeds one text per request, the pattern a naive caller uses.
	var baselineErrors atomic.Int64
	baselineStart := time.Now()
	h.forEach(ctx, len(workload.Texts), func(i int) {
		if _, err := h.baseline.Embedder.Embed(ctx, []string{workload.Texts[i]}); err != nil {
			baselineErrors.Add(1)
			h.logger.Warn("baseline embedding failed", "index", i, "error", err)
		}
	})
	baselineTotal := time.Since(baselineStart).Seconds()
	result.BaselineErrors = int(baselineErrors.Load())

	count := float64(len(workload.Texts))
	result.Baseline["total_time"] = baselineTotal
	result.Baseline["avg_time_per_text"] = baselineTotal / count
	if baselineTotal > 0 {
		result.Baseline["throughput"] = count / baselineTotal
	}

	// Optimized embeds the whole set in batched calls, repeated so later
	// passes hit the cache.
	var optimizedErrors atomic.Int64
	optimizedStart := time.Now()
	for pass := 0; pass < h.config.WarmPasses; pass++ {
		if ctx.Err() != nil {
			break
		}
		if _, err := h.optimized.Embedder.Embed(ctx, workload.Texts); err != nil {
			optimizedErrors.Add(1)
			h.logger.Warn("optimized embedding failed", "pass", pass, "error", err)
		}
	}
	optimizedTotal := time.Since(optimizedStart).Seconds()
	result.OptimizedErrors = int(optimizedErrors.Load())

	processed := count * float64(h.config.WarmPasses)
	result.Optimized["total_time"] = optimizedTotal
	result.Optimized["avg_time_per_text"] = optimizedTotal / processed
	if optimizedTotal > 0 {
		result.Optimized["throughput"] = processed / optimizedTotal
	}
	if rater, ok := h.optimized.Embedder.(hitRater); ok {
		result.Optimized["cache_hit_rate"] = rater.HitRate()
	}
}

// runSearch compares vector searches through the raw store against the
// TTL-cached searcher.
func (h *Harness) runSearch(ctx context.Context, workload Workload, result *CategoryResult) {
	if len(workload.Queries) == 0 || h.baseline.Searcher == nil || h.optimized.Searcher == nil || h.optimized.Embedder == nil {
		return
	}

	// Query vectors come from the optimized embedder so both sides search
	// with identical inputs and embedding cost stays out of this category.
	vectors := make([][]float32, 0, len(workload.Queries))
	for _, query := range workload.Queries {
		if ctx.Err() != nil {
			return
		}
		vector, err := h.optimized.Embedder.EmbedQuery(ctx, query)
		if err != nil {
			result.BaselineErrors++
			result.OptimizedErrors++
			h.logger.Warn("query embedding failed", "error", err)
			continue
		}
		vectors = append(vectors, vector)
	}
	if len(vectors) == 0 {
		return
	}

	measure := func(searcher rag.Searcher, passes int, errors *atomic.Int64) (float64, float64) {
		start := time.Now()
		for pass := 0; pass < passes; pass++ {
			if ctx.Err() != nil {
				break
			}
			h.forEach(ctx, len(vectors), func(i int) {
				if _, err := searcher.Search(ctx, vectors[i], workload.TopK, workload.Namespace); err != nil {
					errors.Add(1)
					h.logger.Warn("search failed", "index", i, "error", err)
				}
			})
		}
		total := time.Since(start).Seconds()
		return total, float64(len(vectors) * passes)
	}

	var baselineErrors, optimizedErrors atomic.Int64

	baselineTotal, baselineCount := measure(h.baseline.Searcher, 1, &baselineErrors)
	result.BaselineErrors += int(baselineErrors.Load())
	result.Baseline["total_time"] = baselineTotal
	result.Baseline["avg_search_time"] = baselineTotal / baselineCount
	if baselineTotal > 0 {
		result.Baseline["queries_per_second"] = baselineCount / baselineTotal
	}

	optimizedTotal, optimizedCount := measure(h.optimized.Searcher, h.config.WarmPasses, &optimizedErrors)
	result.OptimizedErrors += int(optimizedErrors.Load())
	result.Optimized["total_time"] = optimizedTotal
	result.Optimized["avg_search_time"] = optimizedTotal / optimizedCount
	if optimizedTotal > 0 {
		result.Optimized["queries_per_second"] = optimizedCount / optimizedTotal
	}
	if rater, ok := h.optimized.Searcher.(hitRater); ok {
		result.Optimized["cache_hit_rate"] = rater.HitRate()
	}
}

// runEndToEnd compares full question answering through both pipelines.
func (h *Harness) runEndToEnd(ctx context.Context, workload Workload, result *CategoryResult) {
	if len(workload.Questions) == 0 || h.baseline.Answerer == nil || h.optimized.Answerer == nil {
		return
	}

	measure := func(answerer Answerer, passes int, errors *atomic.Int64) (float64, float64) {
		start := time.Now()
		for pass := 0; pass < passes; pass++ {
			if ctx.Err() != nil {
				break
			}
			h.forEach(ctx, len(workload.Questions), func(i int) {
				if _, err := answerer.Answer(ctx, workload.Questions[i]); err != nil {
					errors.Add(1)
					h.logger.Warn("answer failed", "index", i, "error", err)
				}
			})
		}
		total := time.Since(start).Seconds()
		return total, float64(len(workload.Questions) * passes)
	}

	var baselineErrors, optimizedErrors atomic.Int64

	baselineTotal, baselineCount := measure(h.baseline.Answerer, 1, &baselineErrors)
	result.BaselineErrors = int(baselineErrors.Load())
	result.Baseline["total_time"] = baselineTotal
	result.Baseline["avg_response_time"] = baselineTotal / baselineCount
	if baselineTotal > 0 {
		result.Baseline["questions_per_minute"] = baselineCount / baselineTotal * 60
	}

	optimizedTotal, optimizedCount := measure(h.optimized.Answerer, h.config.WarmPasses, &optimizedErrors)
	result.OptimizedErrors = int(optimizedErrors.Load())
	result.Optimized["total_time"] = optimizedTotal
	result.Optimized["avg_response_time"] = optimizedTotal / optimizedCount
	if optimizedTotal > 0 {
		result.Optimized["questions_per_minute"] = optimizedCount / optimizedTotal * 60
	}
}

// forEach runs fn over [0, n) with bounded concurrency. Workers report their
// own failures; forEach only stops issuing work when the context is done.
func (h *Harness) forEach(ctx context.Context, n int, fn func(i int)) {
	var group errgroup.Group
	group.SetLimit(h.config.Concurrency)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		i := i
		group.Go(func() error {
			fn(i)
			return nil
		})
	}
	group.Wait()
}
