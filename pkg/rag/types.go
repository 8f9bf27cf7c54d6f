// Package rag implements the retrieval-augmented answering pipeline for legal
// case records, together with the caching tiers that sit in front of the
// embedding, vector-search, and generation services.
package rag

import "context"

// EmbeddingResult carries the vectors for a batch of texts, ordered to match
// the input, plus the model's dimensionality.
type EmbeddingResult struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimension  int         `json:"dim"`
}

// Embedder converts texts into vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) (*EmbeddingResult, error)
	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Match is one ranked result from a vector search.
type Match struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Searcher performs ranked vector search within a namespace.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error)
}

// UpsertItem is one vector with its metadata for the write path.
type UpsertItem struct {
	ID       string                 `json:"id"`
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata"`
}

// VectorStore is the full vector-database contract. Upserts do not invalidate
// search or response caches; cached results may be stale until their TTL
// expires.
type VectorStore interface {
	Searcher
	Upsert(ctx context.Context, namespace string, items []UpsertItem) error
}

// Generator produces an answer from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
