// legalrag-bench replays a fixed workload through an uncached baseline stack
// and the cached production stack, writes the comparison report as JSON and
// prints the attainment score against the performance targets.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caselens/legalrag/pkg/benchmark"
	"github.com/caselens/legalrag/pkg/config"
	"github.com/caselens/legalrag/pkg/rag"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to the YAML config file")
		workloadPath = flag.String("workload", "", "path to the workload JSON file, overrides the config")
		outputPath   = flag.String("output", "", "path for the results JSON, overrides the config")
		verbose      = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *workloadPath != "" {
		cfg.Benchmark.WorkloadPath = *workloadPath
	}
	if *outputPath != "" {
		cfg.Benchmark.OutputPath = *outputPath
	}
	if cfg.Benchmark.WorkloadPath == "" {
		logger.Error("a workload file is required, set -workload or benchmark.workload_path")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("benchmark failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	workload, err := loadWorkload(cfg.Benchmark.WorkloadPath)
	if err != nil {
		return err
	}
	workload.TopK = cfg.Pipeline.TopK
	workload.Namespace = cfg.Pipeline.Namespace

	baseline, optimized, err := buildStacks(cfg, logger)
	if err != nil {
		return err
	}

	harness := benchmark.NewHarness(baseline, optimized, cfg.HarnessConfig(), logger)
	results, err := harness.Run(ctx, *workload)
	if err != nil {
		return err
	}

	if err := results.Save(cfg.Benchmark.OutputPath); err != nil {
		return err
	}
	logger.Info("results written", "path", cfg.Benchmark.OutputPath)

	for _, sample := range results.Samples() {
		logger.Info("improvement",
			"category", sample.Category,
			"metric", sample.Metric,
			"baseline", sample.Baseline,
			"optimized", sample.Optimized,
			"percent", fmt.Sprintf("%.1f", sample.ImprovementPercent()),
		)
	}

	score := benchmark.ScoreResults(results.OptimizedMetrics(), benchmark.DefaultTargets())
	for category, value := range score.Categories {
		logger.Info("category score", "category", category, "score", fmt.Sprintf("%.1f", value))
	}
	logger.Info("overall score", "score", fmt.Sprintf("%.1f", score.Overall))
	return nil
}

// buildStacks wires the raw clients and their cached counterparts. Both
// stacks share one Gemini client and one Weaviate connection; only the cache
// layers differ.
func buildStacks(cfg *config.Config, logger *slog.Logger) (benchmark.Stack, benchmark.Stack, error) {
	var zero benchmark.Stack

	embedder, err := rag.NewGeminiEmbedder(cfg.GeminiClientConfig(), logger)
	if err != nil {
		return zero, zero, err
	}
	generator, err := rag.NewGeminiGenerator(cfg.GeminiClientConfig(), logger)
	if err != nil {
		return zero, zero, err
	}
	store, err := rag.NewWeaviateStore(cfg.WeaviateClientConfig(), logger)
	if err != nil {
		return zero, zero, err
	}

	var secondary rag.SecondaryCache
	if cfg.Redis.Address != "" {
		redisCache, err := rag.NewRedisEmbeddingCache(cfg.RedisCacheConfig(), logger)
		if err != nil {
			return zero, zero, err
		}
		secondary = redisCache
	}

	cachedEmbedder := rag.NewCachedEmbedder(embedder, cfg.EmbedderConfig(), secondary, logger, nil)
	cachedSearcher := rag.NewCachedSearcher(store, cfg.SearcherConfig(), logger, nil)

	baseline := benchmark.Stack{
		Embedder: embedder,
		Searcher: store,
		Answerer: rag.NewPipeline(embedder, store, generator, uncachedPipelineConfig(cfg), logger, nil),
	}
	optimized := benchmark.Stack{
		Embedder: cachedEmbedder,
		Searcher: cachedSearcher,
		Answerer: rag.NewPipeline(cachedEmbedder, cachedSearcher, generator, cfg.PipelineServiceConfig(), logger, nil),
	}
	return baseline, optimized, nil
}

// uncachedPipelineConfig disables the response cache and request collapsing
// so the baseline pipeline answers every question from scratch, including
// concurrent duplicates.
func uncachedPipelineConfig(cfg *config.Config) rag.PipelineConfig {
	pc := cfg.PipelineServiceConfig()
	pc.DisableCache = true
	return pc
}

func loadWorkload(path string) (*benchmark.Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload: %w", err)
	}

	var workload benchmark.Workload
	if err := json.Unmarshal(data, &workload); err != nil {
		return nil, fmt.Errorf("failed to parse workload: %w", err)
	}
	if len(workload.Texts) == 0 && len(workload.Queries) == 0 && len(workload.Questions) == 0 {
		return nil, fmt.Errorf("workload is empty")
	}
	return &workload, nil
}
