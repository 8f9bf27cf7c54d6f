package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caselens/legalrag/pkg/cache"
	"github.com/caselens/legalrag/pkg/metrics"
)

// SecondaryCache is an optional second cache tier behind the in-memory one,
// typically Redis. Lookup errors are logged and treated as misses, never
// surfaced to callers.
type SecondaryCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, embedding []float32) error
}

// EmbedderConfig holds cache and batching parameters for CachedEmbedder.
type EmbedderConfig struct {
	CacheSize        int `json:"cache_size"`
	OptimalBatchSize int `json:"optimal_batch_size"`
}

// DefaultEmbedderConfig returns the production embedding-cache parameters.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		CacheSize:        1000,
		OptimalBatchSize: 8,
	}
}

// CachedEmbedder wraps an Embedder with a content-addressed LRU cache. A batch
// request is partitioned into cached and uncached texts; only the uncached
// subset reaches the upstream service, and results are merged back in input
// order.
type CachedEmbedder struct {
	upstream  Embedder
	config    EmbedderConfig
	cache     *cache.LRU[[]float32]
	secondary SecondaryCache
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// NewCachedEmbedder creates the caching wrapper. secondary may be nil to run
// with the in-memory tier only.
func NewCachedEmbedder(upstream Embedder, config EmbedderConfig, secondary SecondaryCache, logger *slog.Logger, recorder metrics.Recorder) *CachedEmbedder {
	if config.CacheSize == 0 {
		config = DefaultEmbedderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &CachedEmbedder{
		upstream:  upstream,
		config:    config,
		cache:     cache.NewLRU[[]float32](config.CacheSize),
		secondary: secondary,
		logger:    logger.With("component", "embedding-cache"),
		recorder:  recorder,
	}
}

// Embed returns one vector per text, in input order. Cached texts never reach
// the upstream service; uncached texts go out in batched calls bounded by
// OptimalBatchSize. A failed batch caches nothing from that batch and
// surfaces the error; vectors from batches that already completed stay
// cached.
func (ce *CachedEmbedder) Embed(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	if len(texts) == 0 {
		return &EmbeddingResult{}, nil
	}

	embeddings := make([][]float32, len(texts))
	var missTexts []string
	var missIndices []int

	for i, text := range texts {
		key := textKey(text)

		if vec, found := ce.cache.Get(key); found {
			embeddings[i] = vec
			ce.recorder.CacheHit("embedding")
			continue
		}

		if ce.secondary != nil {
			vec, found, err := ce.secondary.Get(ctx, key)
			if err != nil {
				ce.logger.Warn("secondary cache lookup failed", "error", err)
			} else if found {
				// Promote to the in-memory tier.
				ce.cache.Put(key, vec)
				embeddings[i] = vec
				ce.recorder.CacheHit("embedding")
				continue
			}
		}

		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
		ce.recorder.CacheMiss("embedding")
	}

	dimension := 0
	if len(missTexts) > 0 {
		ce.logger.Debug("embedding cache partition",
			"hits", len(texts)-len(missTexts),
			"misses", len(missTexts),
		)

		batchSize := ce.config.OptimalBatchSize
		if batchSize <= 0 {
			batchSize = len(missTexts)
		}

		for start := 0; start < len(missTexts); start += batchSize {
			end := start + batchSize
			if end > len(missTexts) {
				end = len(missTexts)
			}
			batchTexts := missTexts[start:end]

			result, err := ce.upstream.Embed(ctx, batchTexts)
			if err != nil {
				ce.recorder.UpstreamError("embedding")
				return nil, fmt.Errorf("embedding upstream call failed: %w", err)
			}
			if result.Dimension > 0 {
				dimension = result.Dimension
			}

			// The upstream may return fewer vectors than requested on partial
			// success; only the texts that actually produced a vector are
			// cached.
			for i, vec := range result.Embeddings {
				if i >= len(batchTexts) {
					break
				}
				embeddings[missIndices[start+i]] = vec

				key := textKey(batchTexts[i])
				ce.cache.Put(key, vec)
				if ce.secondary != nil {
					if err := ce.secondary.Set(ctx, key, vec); err != nil {
						ce.logger.Warn("secondary cache store failed", "error", err)
					}
				}
			}
		}
	}

	if dimension == 0 {
		for _, vec := range embeddings {
			if len(vec) > 0 {
				dimension = len(vec)
				break
			}
		}
	}

	return &EmbeddingResult{Embeddings: embeddings, Dimension: dimension}, nil
}

// EmbedQuery embeds a single query through the same cached path.
func (ce *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	result, err := ce.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding upstream returned no vector")
	}
	return result.Embeddings[0], nil
}

// Stats returns the in-memory cache counters.
func (ce *CachedEmbedder) Stats() cache.Stats {
	return ce.cache.Stats()
}

// HitRate returns hits/(hits+misses) for the in-memory tier.
func (ce *CachedEmbedder) HitRate() float64 {
	return ce.cache.Stats().HitRate()
}
