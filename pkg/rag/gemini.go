package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/caselens/legalrag/pkg/retry"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig holds connection parameters for the Google Generative Language
// API clients.
type GeminiConfig struct {
	APIKey          string        `json:"-"`
	Endpoint        string        `json:"endpoint"`
	EmbeddingModel  string        `json:"embedding_model"`
	GenerationModel string        `json:"generation_model"`
	Timeout         time.Duration `json:"timeout"`
	RequestsPerSec  float64       `json:"requests_per_sec"`
	MaxBatchSize    int           `json:"max_batch_size"`
	Normalize       bool          `json:"normalize"`
}

// DefaultGeminiConfig returns production client parameters. The request rate
// stays under the free-tier quota; 10 req/s replaces the fixed 100ms
// inter-request sleep the service previously used.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Endpoint:        defaultGeminiEndpoint,
		EmbeddingModel:  "gemini-embedding-001",
		GenerationModel: "gemini-2.0-flash-001",
		Timeout:         30 * time.Second,
		RequestsPerSec:  10,
		MaxBatchSize:    16,
		Normalize:       true,
	}
}

// GeminiEmbedder calls the Gemini embedding API. Requests are rate limited and
// retried per the configured policy; rate-limit responses back off
// exponentially.
type GeminiEmbedder struct {
	config     GeminiConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
	logger     *slog.Logger
}

// NewGeminiEmbedder creates an embedding client.
func NewGeminiEmbedder(config GeminiConfig, logger *slog.Logger) (*GeminiEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultGeminiEndpoint
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = DefaultGeminiConfig().EmbeddingModel
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RequestsPerSec == 0 {
		config.RequestsPerSec = 10
	}
	if config.MaxBatchSize == 0 {
		config.MaxBatchSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GeminiEmbedder{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSec), 1),
		policy:     retry.DefaultPolicy(IsRetryable),
		logger:     logger.With("component", "gemini-embedder"),
	}, nil
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type embedContentRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Embed returns one vector per text, in input order, batching requests at
// MaxBatchSize per upstream call.
func (ge *GeminiEmbedder) Embed(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	if len(texts) == 0 {
		return &EmbeddingResult{}, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ge.config.MaxBatchSize {
		end := start + ge.config.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := ge.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}

	if ge.config.Normalize {
		for _, vec := range embeddings {
			l2Normalize(vec)
		}
	}

	dimension := 0
	if len(embeddings) > 0 {
		dimension = len(embeddings[0])
	}

	ge.logger.Debug("texts embedded", "count", len(texts), "dimension", dimension)
	return &EmbeddingResult{Embeddings: embeddings, Dimension: dimension}, nil
}

// EmbedQuery embeds a single text.
func (ge *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	result, err := ge.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding")
	}
	return result.Embeddings[0], nil
}

func (ge *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := "models/" + ge.config.EmbeddingModel
	payload := batchEmbedRequest{Requests: make([]embedContentRequest, len(texts))}
	for i, text := range texts {
		payload.Requests[i] = embedContentRequest{
			Model:   model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		}
	}

	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", ge.config.Endpoint, model, ge.config.APIKey)

	var response batchEmbedResponse
	err := ge.policy.Do(ctx, func(ctx context.Context) error {
		if err := ge.limiter.Wait(ctx); err != nil {
			return err
		}
		return postJSON(ctx, ge.httpClient, url, payload, &response)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed failed: %w", err)
	}

	// A short batch would shift every later vector against its text, so the
	// caches would store wrong vectors under wrong keys. Fail the batch
	// instead; the mismatch is a protocol anomaly, not worth retrying.
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts",
			len(response.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(response.Embeddings))
	for i, e := range response.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// GeminiGenerator calls the Gemini text-generation API behind a circuit
// breaker, so a failing upstream sheds load quickly instead of queueing
// retries.
type GeminiGenerator struct {
	config     GeminiConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	policy     retry.Policy
	logger     *slog.Logger
}

// NewGeminiGenerator creates a generation client.
func NewGeminiGenerator(config GeminiConfig, logger *slog.Logger) (*GeminiGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultGeminiEndpoint
	}
	if config.GenerationModel == "" {
		config.GenerationModel = DefaultGeminiConfig().GenerationModel
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gemini-generator",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &GeminiGenerator{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		policy:     retry.DefaultPolicy(IsRetryable),
		logger:     logger.With("component", "gemini-generator"),
	}, nil
}

type generateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate produces a completion for prompt.
func (gg *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		gg.config.Endpoint, gg.config.GenerationModel, gg.config.APIKey)

	payload := generateRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}

	result, err := gg.breaker.Execute(func() (interface{}, error) {
		var response generateResponse
		err := gg.policy.Do(ctx, func(ctx context.Context) error {
			return postJSON(ctx, gg.httpClient, url, payload, &response)
		})
		if err != nil {
			return nil, err
		}
		return &response, nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	response := result.(*generateResponse)
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	answer := response.Candidates[0].Content.Parts[0].Text
	gg.logger.Debug("completion generated", "prompt_chars", len(prompt), "answer_chars", len(answer))
	return answer, nil
}

// postJSON sends a JSON POST and decodes the JSON response, mapping HTTP
// status codes onto the upstream error classes.
func postJSON(ctx context.Context, client *http.Client, url string, payload, response interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// l2Normalize scales vec to unit length in place. Zero vectors are left
// untouched.
func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm < 1e-12 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
