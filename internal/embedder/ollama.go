package embedder

import (
	"context"
	"net/http"
	"os"
	"strings"
)

// OllamaProvider implements Embedder against a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an embedder for an Ollama server.
// The base URL falls back to OLLAMA_BASE_URL and then to localhost.
func NewOllamaProvider(cfg Config, cache *Cache) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv(EnvOllamaURL)
	}
	baseURL = strings.TrimRight(orDefault(baseURL, DefaultOllamaBaseURL), "/")

	dim := cfg.Dimensions
	if dim <= 0 {
		dim = OllamaDimension
	}

	return &OllamaProvider{
		baseURL:    baseURL,
		model:      orDefault(cfg.Model, DefaultOllamaModel),
		dimension:  dim,
		httpClient: &http.Client{Timeout: cfg.timeout()},
		cache:      cache,
	}, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return singleFromBatch(ctx, o, req)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := orDefault(req.Model, o.model)
	embeddings, err := cachedBatch(ctx, o.cache, req, model, DefaultBatchSize, o.callAPI)
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOllama,
		Model:      model,
	}, nil
}

// callAPI uses the batch /api/embed endpoint
func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}

	if err := postJSON(ctx, o.httpClient, o.baseURL+"/api/embed", nil, reqBody, &apiResp); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(apiResp.Embeddings))
	for i, vec := range apiResp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  ProviderOllama,
			Model:     orDefault(apiResp.Model, model),
		}
	}

	return embeddings, nil
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
