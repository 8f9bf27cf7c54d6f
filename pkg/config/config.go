// Package config loads the service configuration from an optional YAML file
// with LEGALRAG_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/caselens/legalrag/pkg/benchmark"
	"github.com/caselens/legalrag/pkg/chunking"
	"github.com/caselens/legalrag/pkg/rag"
)

// Config holds all configuration for the legal RAG services.
type Config struct {
	Gemini    GeminiConfig    `yaml:"gemini"`
	Weaviate  WeaviateConfig  `yaml:"weaviate"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
}

// GeminiConfig configures the embedding and generation client.
type GeminiConfig struct {
	APIKey          string        `yaml:"api_key"`
	Endpoint        string        `yaml:"endpoint"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	GenerationModel string        `yaml:"generation_model"`
	Timeout         time.Duration `yaml:"timeout"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
}

// WeaviateConfig configures the vector store connection.
type WeaviateConfig struct {
	Host      string        `yaml:"host"`
	Scheme    string        `yaml:"scheme"`
	APIKey    string        `yaml:"api_key"`
	ClassName string        `yaml:"class_name"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RedisConfig configures the optional shared embedding cache tier. An empty
// address disables the tier.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	Database     int           `yaml:"database"`
	EmbeddingTTL time.Duration `yaml:"embedding_ttl"`
}

// CacheConfig sizes the in-memory cache tiers.
type CacheConfig struct {
	EmbeddingSize int           `yaml:"embedding_size"`
	SearchSize    int           `yaml:"search_size"`
	SearchTTL     time.Duration `yaml:"search_ttl"`
	ResponseSize  int           `yaml:"response_size"`
	ResponseTTL   time.Duration `yaml:"response_ttl"`
	OptimalBatch  int           `yaml:"optimal_batch"`
}

// PipelineConfig configures retrieval.
type PipelineConfig struct {
	TopK             int    `yaml:"top_k"`
	Namespace        string `yaml:"namespace"`
	MaxContextLength int    `yaml:"max_context_length"`
	MinContextTail   int    `yaml:"min_context_tail"`
}

// ChunkingConfig configures the case-record chunker.
type ChunkingConfig struct {
	SummaryThreshold int `yaml:"summary_threshold"`
	ParagraphMinLen  int `yaml:"paragraph_min_len"`
	ParagraphMaxLen  int `yaml:"paragraph_max_len"`
	ParagraphOverlap int `yaml:"paragraph_overlap"`
}

// BenchmarkConfig configures the benchmark harness.
type BenchmarkConfig struct {
	WorkloadPath string `yaml:"workload_path"`
	OutputPath   string `yaml:"output_path"`
	Concurrency  int    `yaml:"concurrency"`
	WarmPasses   int    `yaml:"warm_passes"`
}

// DefaultConfig returns a configuration with production defaults. The Gemini
// API key has no default and must come from the file or the environment.
func DefaultConfig() *Config {
	gemini := rag.DefaultGeminiConfig()
	weaviate := rag.DefaultWeaviateConfig()
	redis := rag.DefaultRedisCacheConfig()
	embedder := rag.DefaultEmbedderConfig()
	searcher := rag.DefaultSearcherConfig()
	pipeline := rag.DefaultPipelineConfig()
	chunker := chunking.DefaultConfig()
	bench := benchmark.DefaultConfig()

	return &Config{
		Gemini: GeminiConfig{
			Endpoint:        gemini.Endpoint,
			EmbeddingModel:  gemini.EmbeddingModel,
			GenerationModel: gemini.GenerationModel,
			Timeout:         gemini.Timeout,
			RequestsPerSec:  gemini.RequestsPerSec,
			MaxBatchSize:    gemini.MaxBatchSize,
		},
		Weaviate: WeaviateConfig{
			Host:      "localhost:8080",
			Scheme:    weaviate.Scheme,
			ClassName: weaviate.ClassName,
			Timeout:   weaviate.Timeout,
		},
		Redis: RedisConfig{
			EmbeddingTTL: redis.EmbeddingTTL,
		},
		Cache: CacheConfig{
			EmbeddingSize: embedder.CacheSize,
			SearchSize:    searcher.CacheSize,
			SearchTTL:     searcher.CacheTTL,
			ResponseSize:  pipeline.ResponseCacheSize,
			ResponseTTL:   pipeline.ResponseCacheTTL,
			OptimalBatch:  embedder.OptimalBatchSize,
		},
		Pipeline: PipelineConfig{
			TopK:             pipeline.TopK,
			Namespace:        pipeline.Namespace,
			MaxContextLength: pipeline.MaxContextLength,
			MinContextTail:   pipeline.MinContextTail,
		},
		Chunking: ChunkingConfig{
			SummaryThreshold: chunker.SummaryThreshold,
			ParagraphMinLen:  chunker.ParagraphMinLen,
			ParagraphMaxLen:  chunker.ParagraphMaxLen,
			ParagraphOverlap: chunker.ParagraphOverlap,
		},
		Benchmark: BenchmarkConfig{
			OutputPath:  "benchmark_results.json",
			Concurrency: bench.Concurrency,
			WarmPasses:  bench.WarmPasses,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv applies LEGALRAG_* environment overrides on top of whatever the
// file provided. Unparsable numeric values are ignored.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("LEGALRAG_GEMINI_API_KEY"); val != "" {
		c.Gemini.APIKey = val
	}
	if val := os.Getenv("LEGALRAG_GEMINI_ENDPOINT"); val != "" {
		c.Gemini.Endpoint = val
	}
	if val := os.Getenv("LEGALRAG_EMBEDDING_MODEL"); val != "" {
		c.Gemini.EmbeddingModel = val
	}
	if val := os.Getenv("LEGALRAG_GENERATION_MODEL"); val != "" {
		c.Gemini.GenerationModel = val
	}
	if val := os.Getenv("LEGALRAG_WEAVIATE_HOST"); val != "" {
		c.Weaviate.Host = val
	}
	if val := os.Getenv("LEGALRAG_WEAVIATE_SCHEME"); val != "" {
		c.Weaviate.Scheme = val
	}
	if val := os.Getenv("LEGALRAG_WEAVIATE_API_KEY"); val != "" {
		c.Weaviate.APIKey = val
	}
	if val := os.Getenv("LEGALRAG_WEAVIATE_CLASS"); val != "" {
		c.Weaviate.ClassName = val
	}
	if val := os.Getenv("LEGALRAG_REDIS_ADDRESS"); val != "" {
		c.Redis.Address = val
	}
	if val := os.Getenv("LEGALRAG_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("LEGALRAG_NAMESPACE"); val != "" {
		c.Pipeline.Namespace = val
	}
	if val := os.Getenv("LEGALRAG_TOP_K"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Pipeline.TopK = n
		}
	}
	if val := os.Getenv("LEGALRAG_SEARCH_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.SearchTTL = d
		}
	}
	if val := os.Getenv("LEGALRAG_RESPONSE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.ResponseTTL = d
		}
	}
	if val := os.Getenv("LEGALRAG_BENCH_WORKLOAD"); val != "" {
		c.Benchmark.WorkloadPath = val
	}
	if val := os.Getenv("LEGALRAG_BENCH_OUTPUT"); val != "" {
		c.Benchmark.OutputPath = val
	}
}

// Validate checks constraints that would otherwise surface as confusing
// runtime failures deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline top_k must be positive, got %d", c.Pipeline.TopK)
	}
	if c.Cache.EmbeddingSize <= 0 || c.Cache.SearchSize <= 0 || c.Cache.ResponseSize <= 0 {
		return fmt.Errorf("cache sizes must be positive")
	}
	if c.Cache.SearchTTL <= 0 || c.Cache.ResponseTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Chunking.SummaryThreshold <= 0 {
		return fmt.Errorf("chunking summary_threshold must be positive, got %d", c.Chunking.SummaryThreshold)
	}
	if c.Weaviate.Scheme != "http" && c.Weaviate.Scheme != "https" {
		return fmt.Errorf("weaviate scheme must be http or https, got %q", c.Weaviate.Scheme)
	}
	return nil
}

// GeminiClientConfig maps the loaded configuration onto the Gemini client.
func (c *Config) GeminiClientConfig() rag.GeminiConfig {
	cfg := rag.DefaultGeminiConfig()
	cfg.APIKey = c.Gemini.APIKey
	if c.Gemini.Endpoint != "" {
		cfg.Endpoint = c.Gemini.Endpoint
	}
	if c.Gemini.EmbeddingModel != "" {
		cfg.EmbeddingModel = c.Gemini.EmbeddingModel
	}
	if c.Gemini.GenerationModel != "" {
		cfg.GenerationModel = c.Gemini.GenerationModel
	}
	if c.Gemini.Timeout > 0 {
		cfg.Timeout = c.Gemini.Timeout
	}
	if c.Gemini.RequestsPerSec > 0 {
		cfg.RequestsPerSec = c.Gemini.RequestsPerSec
	}
	if c.Gemini.MaxBatchSize > 0 {
		cfg.MaxBatchSize = c.Gemini.MaxBatchSize
	}
	return cfg
}

// WeaviateClientConfig maps the loaded configuration onto the vector store.
func (c *Config) WeaviateClientConfig() rag.WeaviateConfig {
	cfg := rag.DefaultWeaviateConfig()
	cfg.Host = c.Weaviate.Host
	cfg.APIKey = c.Weaviate.APIKey
	if c.Weaviate.Scheme != "" {
		cfg.Scheme = c.Weaviate.Scheme
	}
	if c.Weaviate.ClassName != "" {
		cfg.ClassName = c.Weaviate.ClassName
	}
	if c.Weaviate.Timeout > 0 {
		cfg.Timeout = c.Weaviate.Timeout
	}
	return cfg
}

// RedisCacheConfig maps the loaded configuration onto the Redis tier.
func (c *Config) RedisCacheConfig() rag.RedisCacheConfig {
	cfg := rag.DefaultRedisCacheConfig()
	cfg.Address = c.Redis.Address
	cfg.Password = c.Redis.Password
	cfg.Database = c.Redis.Database
	if c.Redis.EmbeddingTTL > 0 {
		cfg.EmbeddingTTL = c.Redis.EmbeddingTTL
	}
	return cfg
}

// EmbedderConfig maps the loaded configuration onto the embedding cache.
func (c *Config) EmbedderConfig() rag.EmbedderConfig {
	return rag.EmbedderConfig{
		CacheSize:        c.Cache.EmbeddingSize,
		OptimalBatchSize: c.Cache.OptimalBatch,
	}
}

// SearcherConfig maps the loaded configuration onto the search cache.
func (c *Config) SearcherConfig() rag.SearcherConfig {
	return rag.SearcherConfig{
		CacheSize: c.Cache.SearchSize,
		CacheTTL:  c.Cache.SearchTTL,
	}
}

// PipelineServiceConfig maps the loaded configuration onto the pipeline.
func (c *Config) PipelineServiceConfig() rag.PipelineConfig {
	return rag.PipelineConfig{
		TopK:              c.Pipeline.TopK,
		Namespace:         c.Pipeline.Namespace,
		MaxContextLength:  c.Pipeline.MaxContextLength,
		MinContextTail:    c.Pipeline.MinContextTail,
		ResponseCacheSize: c.Cache.ResponseSize,
		ResponseCacheTTL:  c.Cache.ResponseTTL,
	}
}

// ChunkerConfig maps the loaded configuration onto the chunker.
func (c *Config) ChunkerConfig() chunking.Config {
	return chunking.Config{
		SummaryThreshold: c.Chunking.SummaryThreshold,
		ParagraphMinLen:  c.Chunking.ParagraphMinLen,
		ParagraphMaxLen:  c.Chunking.ParagraphMaxLen,
		ParagraphOverlap: c.Chunking.ParagraphOverlap,
	}
}

// HarnessConfig maps the loaded configuration onto the benchmark harness.
func (c *Config) HarnessConfig() benchmark.Config {
	return benchmark.Config{
		Concurrency: c.Benchmark.Concurrency,
		WarmPasses:  c.Benchmark.WarmPasses,
	}
}
