package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/caselens/legalrag/pkg/cache"
	"github.com/caselens/legalrag/pkg/metrics"
)

// SearcherConfig holds cache parameters for CachedSearcher.
type SearcherConfig struct {
	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`
}

// DefaultSearcherConfig returns the production search-cache parameters.
func DefaultSearcherConfig() SearcherConfig {
	return SearcherConfig{
		CacheSize: 500,
		CacheTTL:  5 * time.Minute,
	}
}

// CachedSearcher wraps a Searcher with a TTL cache keyed by an approximate
// query signature: a bounded prefix of the query vector plus topK and
// namespace. Near-duplicate vectors can collide to the same key and return the
// cached result unchanged; there is no freshness check beyond the TTL, and
// upserts do not invalidate entries.
type CachedSearcher struct {
	upstream Searcher
	config   SearcherConfig
	cache    *cache.TTL[[]Match]
	group    singleflight.Group
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewCachedSearcher creates the caching wrapper.
func NewCachedSearcher(upstream Searcher, config SearcherConfig, logger *slog.Logger, recorder metrics.Recorder) *CachedSearcher {
	if config.CacheSize == 0 {
		config = DefaultSearcherConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &CachedSearcher{
		upstream: upstream,
		config:   config,
		cache:    cache.NewTTL[[]Match](config.CacheSize, config.CacheTTL),
		logger:   logger.With("component", "search-cache"),
		recorder: recorder,
	}
}

// Search returns the cached match list when the query signature is fresh,
// otherwise calls the vector database once and stores the result. Concurrent
// misses for the same signature are collapsed into a single upstream call.
func (cs *CachedSearcher) Search(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error) {
	key := searchKey(vector, topK, namespace)

	if matches, found := cs.cache.Get(key); found {
		cs.recorder.CacheHit("search")
		return matches, nil
	}
	cs.recorder.CacheMiss("search")

	result, err, _ := cs.group.Do(key, func() (interface{}, error) {
		// Another caller may have populated the entry while this one waited
		// for the flight slot.
		if matches, found := cs.cache.Get(key); found {
			return matches, nil
		}

		matches, err := cs.upstream.Search(ctx, vector, topK, namespace)
		if err != nil {
			cs.recorder.UpstreamError("search")
			return nil, fmt.Errorf("vector search failed: %w", err)
		}

		cs.cache.Put(key, matches)
		return matches, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]Match), nil
}

// Stats returns the search-cache counters.
func (cs *CachedSearcher) Stats() cache.Stats {
	return cs.cache.Stats()
}
