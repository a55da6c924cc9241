package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch places vectors by index", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, DefaultJinaModel, body.Model)

			// Reverse order on purpose
			data := make([]map[string]interface{}, 0, len(body.Input))
			for i := len(body.Input) - 1; i >= 0; i-- {
				data = append(data, map[string]interface{}{
					"index":     i,
					"embedding": []float32{float32(i), 1},
				})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": body.Model, "data": data})
		}))
		defer server.Close()

		p, err := NewJinaProvider(Config{APIKey: "test-key", BaseURL: server.URL}, NewCache(10))
		require.NoError(t, err)
		defer p.Close()

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		for i, emb := range resp.Embeddings {
			assert.Equal(t, float32(i), emb.Vector[0])
			assert.Equal(t, ProviderJina, emb.Provider)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		p, err := NewJinaProvider(Config{APIKey: "test-key"}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, p.Provider())
		assert.Equal(t, JinaDimension, p.Dimension())
		assert.Equal(t, DefaultJinaModel, p.Model())
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		_, err := NewJinaProvider(Config{}, nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("validation errors", func(t *testing.T) {
		p, err := NewJinaProvider(Config{APIKey: "test-key"}, nil)
		require.NoError(t, err)
		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{})
		assert.ErrorIs(t, err, ErrEmptyText)
		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestOllamaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch embed", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "/api/embed", r.URL.Path)

			var body struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, DefaultOllamaModel, body.Model)

			vecs := make([][]float32, len(body.Input))
			for i, in := range body.Input {
				vecs[i] = []float32{float32(len(in))}
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": body.Model, "embeddings": vecs})
		}))
		defer server.Close()

		p, err := NewOllamaProvider(Config{BaseURL: server.URL + "/"}, NewCache(10))
		require.NoError(t, err)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "bbb"}})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1}, {3}}, resp.Vectors())

		// Second call is fully cached
		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "bbb"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("base url from env", func(t *testing.T) {
		t.Setenv(EnvOllamaURL, "http://ollama.internal:11434")
		p, err := NewOllamaProvider(Config{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "http://ollama.internal:11434", p.baseURL)
		assert.Equal(t, OllamaDimension, p.Dimension())
	})

	t.Run("server error is retried then reported", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer server.Close()

		p, err := NewOllamaProvider(Config{BaseURL: server.URL}, nil)
		require.NoError(t, err)

		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "model not loaded")
		assert.Equal(t, int32(MaxRetries), atomic.LoadInt32(&calls))
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "model \"nope\" not found", http.StatusNotFound)
		}))
		defer server.Close()

		p, err := NewOllamaProvider(Config{BaseURL: server.URL}, nil)
		require.NoError(t, err)

		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestOpenAIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("embeddings via compatible endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			var body struct {
				Input      []string `json:"input"`
				Model      string   `json:"model"`
				Dimensions int      `json:"dimensions"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 8, body.Dimensions)

			data := make([]map[string]interface{}, len(body.Input))
			for i := range body.Input {
				data[i] = map[string]interface{}{
					"object":    "embedding",
					"index":     i,
					"embedding": []float64{float64(i), 0.5},
				}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"object": "list",
				"model":  body.Model,
				"data":   data,
				"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
			})
		}))
		defer server.Close()

		p, err := NewOpenAIProvider(Config{APIKey: "sk-test", BaseURL: server.URL, Dimensions: 8}, nil)
		require.NoError(t, err)
		assert.Equal(t, 8, p.Dimension())

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x", "y"}})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0, 0.5}, {1, 0.5}}, resp.Vectors())
		assert.Equal(t, DefaultOpenAIModel, resp.Model)
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "")
		_, err := NewOpenAIProvider(Config{}, nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("metadata", func(t *testing.T) {
		p, err := NewOpenAIProvider(Config{APIKey: "sk-test", Model: "text-embedding-3-large"}, nil)
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.Provider())
		assert.Equal(t, OpenAIDimension, p.Dimension())
		assert.Equal(t, "text-embedding-3-large", p.Model())
	})
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient error", func(t *testing.T) {
		callCount := 0
		result, err := retryWithBackoff(context.Background(), DefaultRetryConfig(), func() (string, error) {
			callCount++
			if callCount < 2 {
				return "", fmt.Errorf("transient error")
			}
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, callCount)
	})

	t.Run("exponential backoff timing", func(t *testing.T) {
		config := RetryConfig{
			MaxRetries: 3,
			BaseDelay:  10 * time.Millisecond,
			MaxDelay:   100 * time.Millisecond,
			Multiplier: 2.0,
		}

		callCount := 0
		start := time.Now()
		_, err := retryWithBackoff(context.Background(), config, func() (int, error) {
			callCount++
			return 0, fmt.Errorf("error %d", callCount)
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "error 3")
		assert.Equal(t, 3, callCount)
		// 10ms + 20ms
		assert.GreaterOrEqual(t, time.Since(start).Milliseconds(), int64(30))
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		callCount := 0
		_, err := retryWithBackoff(ctx, DefaultRetryConfig(), func() (bool, error) {
			callCount++
			cancel()
			return false, fmt.Errorf("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, callCount)
	})

	t.Run("final errors stop immediately", func(t *testing.T) {
		for _, final := range []error{
			&APIError{StatusCode: http.StatusUnauthorized, Body: "bad key"},
			fmt.Errorf("%w: got 1, want 2", ErrCountMismatch),
		} {
			callCount := 0
			_, err := retryWithBackoff(context.Background(), DefaultRetryConfig(), func() (int, error) {
				callCount++
				return 0, final
			})
			assert.Equal(t, final, err)
			assert.Equal(t, 1, callCount)
		}
	})
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("dial tcp: connection refused"), true},
		{&APIError{StatusCode: http.StatusTooManyRequests}, true},
		{&APIError{StatusCode: http.StatusBadGateway}, true},
		{&APIError{StatusCode: http.StatusBadRequest}, false},
		{fmt.Errorf("wrapped: %w", &APIError{StatusCode: http.StatusForbidden}), false},
		{ErrCountMismatch, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryable(tt.err), "%v", tt.err)
	}
}
