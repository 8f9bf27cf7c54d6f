package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig holds connection parameters for the Weaviate vector store.
type WeaviateConfig struct {
	Host       string        `json:"host"`
	Scheme     string        `json:"scheme"`
	APIKey     string        `json:"-"`
	ClassName  string        `json:"class_name"`
	Timeout    time.Duration `json:"timeout"`
	AutoSchema bool          `json:"auto_schema"`
}

// DefaultWeaviateConfig returns production store parameters.
func DefaultWeaviateConfig() WeaviateConfig {
	return WeaviateConfig{
		Scheme:     "https",
		ClassName:  "LegalCaseChunk",
		Timeout:    30 * time.Second,
		AutoSchema: true,
	}
}

// WeaviateStore implements VectorStore on a Weaviate cluster. Chunks are
// stored under a single class with their vectors supplied externally; the
// namespace rides as an indexed property so searches can scope to it.
type WeaviateStore struct {
	client *weaviate.Client
	config WeaviateConfig
	logger *slog.Logger
}

// NewWeaviateStore connects to Weaviate and, when AutoSchema is set, ensures
// the chunk class exists.
func NewWeaviateStore(config WeaviateConfig, logger *slog.Logger) (*WeaviateStore, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("weaviate host is required")
	}
	if config.Scheme == "" {
		config.Scheme = "https"
	}
	if config.ClassName == "" {
		config.ClassName = DefaultWeaviateConfig().ClassName
	}
	if logger == nil {
		logger = slog.Default()
	}

	var authConfig auth.Config
	if config.APIKey != "" {
		authConfig = auth.ApiKey{Value: config.APIKey}
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:       config.Host,
		Scheme:     config.Scheme,
		AuthConfig: authConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	ws := &WeaviateStore{
		client: client,
		config: config,
		logger: logger.With("component", "weaviate-store"),
	}

	if config.AutoSchema {
		if err := ws.ensureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return ws, nil
}

// ensureSchema creates the chunk class if it does not exist. Vectors are
// provided by the embedding pipeline, so the class uses no vectorizer module.
func (ws *WeaviateStore) ensureSchema(ctx context.Context) error {
	exists, err := ws.client.Schema().ClassExistenceChecker().
		WithClassName(ws.config.ClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if exists {
		return nil
	}

	class := &models.Class{
		Class:      ws.config.ClassName,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}},
			{Name: "chunkType", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "serialNumber", DataType: []string{"text"}},
			{Name: "caseName", DataType: []string{"text"}},
			{Name: "caseNumber", DataType: []string{"text"}},
			{Name: "courtName", DataType: []string{"text"}},
			{Name: "namespace", DataType: []string{"text"}},
		},
	}

	if err := ws.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("class creation failed: %w", err)
	}

	ws.logger.Info("weaviate class created", "class", ws.config.ClassName)
	return nil
}

// Search runs a nearVector query scoped to namespace and returns matches in
// rank order.
func (ws *WeaviateStore) Search(ctx context.Context, vector []float32, topK int, namespace string) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	nearVector := ws.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "chunkType"},
		{Name: "chunkIndex"},
		{Name: "serialNumber"},
		{Name: "caseName"},
		{Name: "caseNumber"},
		{Name: "courtName"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
		}},
	}

	query := ws.client.GraphQL().Get().
		WithClassName(ws.config.ClassName).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...)

	if namespace != "" {
		where := filters.Where().
			WithPath([]string{"namespace"}).
			WithOperator(filters.Equal).
			WithValueText(namespace)
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate search: %v", ErrTransient, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search returned errors: %v", result.Errors[0].Message)
	}

	matches := []Match{}
	if data, ok := result.Data["Get"].(map[string]interface{}); ok {
		if items, ok := data[ws.config.ClassName].([]interface{}); ok {
			for _, item := range items {
				if itemMap, ok := item.(map[string]interface{}); ok {
					matches = append(matches, ws.parseMatch(itemMap))
				}
			}
		}
	}

	ws.logger.Debug("weaviate search completed",
		"namespace", namespace,
		"top_k", topK,
		"results", len(matches),
	)
	return matches, nil
}

// parseMatch converts one GraphQL result object into a Match. Property names
// are mapped back to the metadata keys the pipeline renders from.
func (ws *WeaviateStore) parseMatch(item map[string]interface{}) Match {
	match := Match{Metadata: map[string]interface{}{}}

	if additional, ok := item["_additional"].(map[string]interface{}); ok {
		if id, ok := additional["id"].(string); ok {
			match.ID = id
		}
		if certainty, ok := additional["certainty"].(float64); ok {
			match.Score = float32(certainty)
		}
	}

	copyString := func(property, metaKey string) {
		if value, ok := item[property].(string); ok {
			match.Metadata[metaKey] = value
		}
	}
	copyString("text", "text")
	copyString("chunkType", "chunk_type")
	copyString("serialNumber", "판례정보일련번호")
	copyString("caseName", "사건명")
	copyString("caseNumber", "사건번호")
	copyString("courtName", "법원명")
	if idx, ok := item["chunkIndex"].(float64); ok {
		match.Metadata["chunk_idx"] = int(idx)
	}

	return match
}

// Upsert writes items into the store. Existing search and response cache
// entries are not invalidated; readers may observe stale results until their
// TTL expires.
func (ws *WeaviateStore) Upsert(ctx context.Context, namespace string, items []UpsertItem) error {
	for _, item := range items {
		properties := map[string]interface{}{"namespace": namespace}
		for key, value := range item.Metadata {
			properties[key] = value
		}

		_, err := ws.client.Data().Creator().
			WithClassName(ws.config.ClassName).
			WithID(item.ID).
			WithProperties(properties).
			WithVector(item.Vector).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: weaviate upsert %s: %v", ErrTransient, item.ID, err)
		}
	}

	ws.logger.Info("vectors upserted", "count", len(items), "namespace", namespace)
	return nil
}
