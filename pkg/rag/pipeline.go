package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/caselens/legalrag/pkg/cache"
	"github.com/caselens/legalrag/pkg/metrics"
)

// PipelineConfig holds retrieval and response-cache parameters.
type PipelineConfig struct {
	TopK              int           `json:"top_k"`
	Namespace         string        `json:"namespace"`
	MaxContextLength  int           `json:"max_context_length"`
	MinContextTail    int           `json:"min_context_tail"`
	ResponseCacheSize int           `json:"response_cache_size"`
	ResponseCacheTTL  time.Duration `json:"response_cache_ttl"`

	// DisableCache bypasses the response cache and the per-question request
	// collapsing, so every Answer call runs the full retrieve-then-generate
	// path. Used for uncached baseline measurements.
	DisableCache bool `json:"disable_cache"`
}

// DefaultPipelineConfig returns the production pipeline parameters. The
// response TTL is deliberately longer than the search TTL: full answers are
// the most expensive artifact to regenerate.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TopK:              3,
		MaxContextLength:  3000,
		MinContextTail:    100,
		ResponseCacheSize: 200,
		ResponseCacheTTL:  30 * time.Minute,
	}
}

// Pipeline answers legal questions by retrieving relevant case chunks and
// generating a response, with a full-answer cache in front. A response-cache
// hit short-circuits retrieval and generation entirely.
type Pipeline struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	config    PipelineConfig
	responses *cache.TTL[string]
	group     singleflight.Group
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// NewPipeline wires the pipeline. Pass cached wrappers for embedder and
// searcher to run the optimized path, or raw clients for an uncached one.
func NewPipeline(embedder Embedder, searcher Searcher, generator Generator, config PipelineConfig, logger *slog.Logger, recorder metrics.Recorder) *Pipeline {
	if config.TopK == 0 {
		config = DefaultPipelineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Pipeline{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		config:    config,
		responses: cache.NewTTL[string](config.ResponseCacheSize, config.ResponseCacheTTL),
		logger:    logger.With("component", "pipeline"),
		recorder:  recorder,
	}
}

// Answer returns the generated answer for a question. Identical questions
// (after trimming and lowercasing) within the response TTL are served from
// cache without touching retrieval or generation. Concurrent misses for the
// same question collapse into one generation. With DisableCache set, every
// call runs the full path independently.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question cannot be empty")
	}

	if p.config.DisableCache {
		return p.answerUncached(ctx, question)
	}

	key := questionKey(question)
	if answer, found := p.responses.Get(key); found {
		p.recorder.CacheHit("response")
		return answer, nil
	}
	p.recorder.CacheMiss("response")

	result, err, _ := p.group.Do(key, func() (interface{}, error) {
		if answer, found := p.responses.Get(key); found {
			return answer, nil
		}

		answer, err := p.answerUncached(ctx, question)
		if err != nil {
			return "", err
		}

		// Cache only successful generations; a failure must never be
		// served as an answer later.
		p.responses.Put(key, answer)
		return answer, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// answerUncached runs the full retrieve-then-generate path.
func (p *Pipeline) answerUncached(ctx context.Context, question string) (string, error) {
	start := time.Now()

	docs, err := p.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	p.recorder.ObserveStageLatency("retrieval", time.Since(start))

	generationStart := time.Now()
	answer, err := p.generator.Generate(ctx, buildPrompt(question, docs))
	if err != nil {
		p.recorder.UpstreamError("generation")
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	p.recorder.ObserveStageLatency("generation", time.Since(generationStart))

	p.logger.Info("answer generated",
		"context_docs", len(docs),
		"total_time", time.Since(start),
	)
	return answer, nil
}

// Retrieve embeds the question and returns the rendered context documents for
// its nearest case chunks.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]string, error) {
	vector, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	matches, err := p.searcher.Search(ctx, vector, p.config.TopK, p.config.Namespace)
	if err != nil {
		return nil, err
	}

	docs := make([]string, 0, len(matches))
	for _, match := range matches {
		if doc := renderMatch(match); doc != "" {
			docs = append(docs, doc)
		}
	}

	return p.optimizeContext(docs), nil
}

// renderMatch formats one search hit as a context document with its case
// header. Hits without retrievable text are dropped.
func renderMatch(match Match) string {
	content := metadataString(match.Metadata, "text")
	if content == "" {
		content = metadataString(match.Metadata, "content")
	}
	if content == "" {
		content = metadataString(match.Metadata, "판결요지")
	}
	if content == "" {
		return ""
	}

	caseName := metadataString(match.Metadata, "사건명")
	caseNumber := metadataString(match.Metadata, "사건번호")
	return fmt.Sprintf("[사건: %s (%s)]\n%s", caseName, caseNumber, content)
}

func metadataString(metadata map[string]interface{}, key string) string {
	if metadata == nil {
		return ""
	}
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}

// optimizeContext deduplicates documents and bounds their combined length.
// The last document is truncated to fit only when at least MinContextTail
// characters of it remain; otherwise it is dropped.
func (p *Pipeline) optimizeContext(docs []string) []string {
	seen := make(map[string]struct{}, len(docs))
	optimized := make([]string, 0, len(docs))
	total := 0

	for _, doc := range docs {
		if _, dup := seen[doc]; dup {
			continue
		}
		seen[doc] = struct{}{}

		length := utf8.RuneCountInString(doc)
		if total+length <= p.config.MaxContextLength {
			optimized = append(optimized, doc)
			total += length
			continue
		}

		remaining := p.config.MaxContextLength - total
		if remaining > p.config.MinContextTail {
			runes := []rune(doc)
			optimized = append(optimized, string(runes[:remaining])+"...")
		}
		break
	}

	return optimized
}

// buildPrompt assembles the generation prompt from the question and its
// retrieved context documents.
func buildPrompt(question string, docs []string) string {
	context := "관련 문서를 찾을 수 없습니다."
	if len(docs) > 0 {
		context = strings.Join(docs, "\n\n")
	}

	return fmt.Sprintf(`당신은 한국 법률 전문가입니다. 주어진 법률 문서를 바탕으로 사용자의 질문에 정확하고 도움이 되는 답변을 제공해주세요.

관련 법률 문서:
%s

사용자 질문: %s

답변 시 다음 사항을 고려해주세요:
1. 제공된 법률 문서의 내용을 기반으로 답변하세요
2. 정확한 법조문이나 판례를 인용하세요
3. 이해하기 쉽게 설명해주세요
4. 추가 상담이 필요한 경우 전문가 상담을 권하세요

답변:`, context, question)
}

// ResponseStats returns the response-cache counters.
func (p *Pipeline) ResponseStats() cache.Stats {
	return p.responses.Stats()
}
