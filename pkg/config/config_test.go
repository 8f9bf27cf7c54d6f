package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("DefaultsWithoutFile", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 3, cfg.Pipeline.TopK)
		assert.Equal(t, 1000, cfg.Cache.EmbeddingSize)
		assert.Equal(t, 5*time.Minute, cfg.Cache.SearchTTL)
		assert.Equal(t, 30*time.Minute, cfg.Cache.ResponseTTL)
		assert.Equal(t, 300, cfg.Chunking.SummaryThreshold)
		assert.Equal(t, "gemini-embedding-001", cfg.Gemini.EmbeddingModel)
		assert.Equal(t, "LegalCaseChunk", cfg.Weaviate.ClassName)
		assert.Empty(t, cfg.Redis.Address, "redis tier is opt-in")
	})

	t.Run("FileOverridesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
weaviate:
  host: weaviate.internal:8080
  scheme: http
pipeline:
  top_k: 5
cache:
  search_ttl: 2m
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "weaviate.internal:8080", cfg.Weaviate.Host)
		assert.Equal(t, "http", cfg.Weaviate.Scheme)
		assert.Equal(t, 5, cfg.Pipeline.TopK)
		assert.Equal(t, 2*time.Minute, cfg.Cache.SearchTTL)
		// Untouched sections keep their defaults.
		assert.Equal(t, 200, cfg.Cache.ResponseSize)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  top_k: 5\n"), 0o644))

		t.Setenv("LEGALRAG_TOP_K", "7")
		t.Setenv("LEGALRAG_GEMINI_API_KEY", "test-key")
		t.Setenv("LEGALRAG_REDIS_ADDRESS", "localhost:6379")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Pipeline.TopK)
		assert.Equal(t, "test-key", cfg.Gemini.APIKey)
		assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	})

	t.Run("MissingFileFails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  top_k: -1\n"), 0o644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "top_k")
	})

	t.Run("BadSchemeRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("weaviate:\n  scheme: gopher\n"), 0o644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "scheme")
	})
}

func TestClientConfigMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gemini.APIKey = "key"
	cfg.Weaviate.Host = "weaviate:8080"
	cfg.Redis.Address = "redis:6379"
	cfg.Pipeline.Namespace = "cases"

	t.Run("Gemini", func(t *testing.T) {
		gc := cfg.GeminiClientConfig()
		assert.Equal(t, "key", gc.APIKey)
		assert.Equal(t, "gemini-2.0-flash-001", gc.GenerationModel)
	})

	t.Run("Weaviate", func(t *testing.T) {
		wc := cfg.WeaviateClientConfig()
		assert.Equal(t, "weaviate:8080", wc.Host)
		assert.True(t, wc.AutoSchema)
	})

	t.Run("Pipeline", func(t *testing.T) {
		pc := cfg.PipelineServiceConfig()
		assert.Equal(t, "cases", pc.Namespace)
		assert.Equal(t, 3000, pc.MaxContextLength)
		assert.Equal(t, 30*time.Minute, pc.ResponseCacheTTL)
	})

	t.Run("Chunker", func(t *testing.T) {
		cc := cfg.ChunkerConfig()
		assert.Equal(t, 300, cc.SummaryThreshold)
		assert.Equal(t, 900, cc.ParagraphMaxLen)
	})
}
