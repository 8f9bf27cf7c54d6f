// legalrag-ingest chunks a case-record export, embeds the chunks and upserts
// them into the vector store. Records that fail to embed or upsert are logged
// and skipped; the run fails only when nothing could be ingested.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/caselens/legalrag/pkg/chunking"
	"github.com/caselens/legalrag/pkg/config"
	"github.com/caselens/legalrag/pkg/metrics"
	"github.com/caselens/legalrag/pkg/rag"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		inputPath  = flag.String("input", "", "path to the case records JSON file")
		namespace  = flag.String("namespace", "", "target namespace, overrides the config")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *inputPath == "" {
		logger.Error("-input is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *namespace != "" {
		cfg.Pipeline.Namespace = *namespace
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *inputPath, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, inputPath string, logger *slog.Logger) error {
	records, err := chunking.LoadCaseRecords(inputPath)
	if err != nil {
		return err
	}
	logger.Info("case records loaded", "path", inputPath, "records", len(records))

	gemini, err := rag.NewGeminiEmbedder(cfg.GeminiClientConfig(), logger)
	if err != nil {
		return err
	}

	var secondary rag.SecondaryCache
	if cfg.Redis.Address != "" {
		redisCache, err := rag.NewRedisEmbeddingCache(cfg.RedisCacheConfig(), logger)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		secondary = redisCache
	}

	recorder := metrics.NewPrometheusRecorder(nil)
	embedder := rag.NewCachedEmbedder(gemini, cfg.EmbedderConfig(), secondary, logger, recorder)

	store, err := rag.NewWeaviateStore(cfg.WeaviateClientConfig(), logger)
	if err != nil {
		return err
	}

	chunker := chunking.NewChunker(cfg.ChunkerConfig(), logger)

	var ingested, skipped, chunks int
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		count, err := ingestRecord(ctx, chunker, embedder, store, cfg.Pipeline.Namespace, rec)
		if err != nil {
			logger.Warn("record skipped",
				"serial_number", rec.SerialNumber,
				"case_number", rec.CaseNumber,
				"error", err,
			)
			skipped++
			continue
		}
		if count > 0 {
			ingested++
			chunks += count
		}
	}

	logger.Info("ingest complete",
		"records", len(records),
		"ingested", ingested,
		"skipped", skipped,
		"chunks", chunks,
		"embedding_cache", embedder.Stats(),
	)

	if ingested == 0 && len(records) > 0 {
		return fmt.Errorf("no records could be ingested")
	}
	return nil
}

// ingestRecord embeds one record's chunks and writes them to the store. The
// record is all-or-nothing: a missing vector or failed upsert skips the whole
// record rather than leaving it partially indexed.
func ingestRecord(ctx context.Context, chunker *chunking.Chunker, embedder rag.Embedder, store rag.VectorStore, namespace string, rec chunking.CaseRecord) (int, error) {
	entries := chunker.BuildEntries(rec)
	if len(entries) == 0 {
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}

	result, err := embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	items := make([]rag.UpsertItem, 0, len(entries))
	for i, entry := range entries {
		if i >= len(result.Embeddings) || result.Embeddings[i] == nil {
			return 0, fmt.Errorf("no embedding returned for chunk %d", entry.ChunkIndex)
		}
		items = append(items, rag.UpsertItem{
			ID:     uuid.NewString(),
			Vector: result.Embeddings[i],
			Metadata: map[string]interface{}{
				"text":         entry.Text,
				"chunkType":    entry.ChunkType,
				"chunkIndex":   entry.ChunkIndex,
				"serialNumber": entry.Metadata.SerialNumber,
				"caseName":     entry.Metadata.CaseName,
				"caseNumber":   entry.Metadata.CaseNumber,
				"courtName":    entry.Metadata.CourtName,
			},
		})
	}

	if err := store.Upsert(ctx, namespace, items); err != nil {
		return 0, err
	}
	return len(items), nil
}
