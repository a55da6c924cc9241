package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEmbedderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvProvider, EnvModel, EnvJinaAPIKey, EnvOpenAIAPIKey, EnvOllamaURL} {
		t.Setenv(key, "")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "default local", want: ProviderLocal},
		{name: "explicit provider", env: map[string]string{EnvProvider: "Ollama"}, want: ProviderOllama},
		{name: "jina key", env: map[string]string{EnvJinaAPIKey: "k"}, want: ProviderJina},
		{name: "openai key", env: map[string]string{EnvOpenAIAPIKey: "k"}, want: ProviderOpenAI},
		{name: "jina wins over openai", env: map[string]string{EnvJinaAPIKey: "k", EnvOpenAIAPIKey: "k"}, want: ProviderJina},
		{name: "explicit wins over keys", env: map[string]string{EnvProvider: "local", EnvJinaAPIKey: "k"}, want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmbedderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("local with model override", func(t *testing.T) {
		clearEmbedderEnv(t)
		t.Setenv(EnvModel, "bow-v2")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
		assert.Equal(t, "bow-v2", emb.Model())
	})

	t.Run("unknown provider", func(t *testing.T) {
		clearEmbedderEnv(t)
		t.Setenv(EnvProvider, "word2vec")
		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("openai from key", func(t *testing.T) {
		clearEmbedderEnv(t)
		t.Setenv(EnvOpenAIAPIKey, "sk-test")
		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, emb.Provider())
	})
}

func TestNew(t *testing.T) {
	clearEmbedderEnv(t)

	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{name: "local", cfg: Config{Provider: "local"}, wantName: ProviderLocal},
		{name: "ollama", cfg: Config{Provider: "ollama"}, wantName: ProviderOllama},
		{name: "jina", cfg: Config{Provider: "JINA", APIKey: "k"}, wantName: ProviderJina},
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "k"}, wantName: ProviderOpenAI},
		{name: "jina without key", cfg: Config{Provider: "jina"}, wantErr: ErrNoProviderEnabled},
		{name: "unknown", cfg: Config{Provider: "nope"}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer emb.Close()
			assert.Equal(t, tt.wantName, emb.Provider())
		})
	}
}
