// Package embeddertest provides deterministic embedders for tests.
package embeddertest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"sync"

	"github.com/dshills/semchunk-mcp/internal/embedder"
)

// MockEmbedder is a fake embedder whose vectors come from VectorFunc.
// It records every batch it receives.
type MockEmbedder struct {
	VectorFunc func(text string) []float32
	Err        error // returned from every call when set

	dimension int
	model     string

	mu      sync.Mutex
	batches [][]string
	models  []string
}

// NewMockEmbedder returns an embedder that derives pseudo-random unit vectors
// from the SHA-256 of each text
func NewMockEmbedder(dimension int) *MockEmbedder {
	m := &MockEmbedder{dimension: dimension, model: "mock-v1"}
	m.VectorFunc = m.hashVector
	return m
}

// NewTopicEmbedder maps each text to the vector of the first topic keyword it
// contains (case-insensitive); texts matching no keyword get fallback.
// Keywords are checked in the order given.
func NewTopicEmbedder(fallback []float32, topics ...Topic) *MockEmbedder {
	m := &MockEmbedder{dimension: len(fallback), model: "mock-topic"}
	m.VectorFunc = func(text string) []float32 {
		lower := strings.ToLower(text)
		for _, t := range topics {
			for _, kw := range t.Keywords {
				if strings.Contains(lower, kw) {
					return append([]float32(nil), t.Vector...)
				}
			}
		}
		return append([]float32(nil), fallback...)
	}
	return m
}

// Topic pairs keywords with the vector assigned to texts containing them
type Topic struct {
	Keywords []string
	Vector   []float32
}

// NewConstantEmbedder returns the same vector for every text
func NewConstantEmbedder(vector []float32) *MockEmbedder {
	return NewTopicEmbedder(vector)
}

func (m *MockEmbedder) hashVector(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	vector := make([]float32, m.dimension)
	for i := 0; i < m.dimension; i++ {
		idx := (i * 4) % 32
		val := binary.BigEndian.Uint32(hash[idx : idx+4])
		vector[i] = (float32(val)/float32(1<<32))*2 - 1
	}
	return embedder.NormalizeVector(vector)
}

// GenerateEmbedding returns VectorFunc(req.Text)
func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch returns one vector per text in order
func (m *MockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), req.Texts...))
	m.models = append(m.models, req.Model)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if err := embedder.ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = m.model
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		vector := m.VectorFunc(text)
		embeddings[i] = &embedder.Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  "mock",
			Model:     model,
			Hash:      embedder.ComputeHash(text),
		}
	}

	return &embedder.BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   "mock",
		Model:      model,
	}, nil
}

// Calls returns the number of batch calls received
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// Batches returns a copy of every batch received
func (m *MockEmbedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.batches))
	copy(out, m.batches)
	return out
}

// Models returns the model field of every batch received
func (m *MockEmbedder) Models() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.models...)
}

// Dimension returns the embedding dimension
func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

// Provider returns the provider name
func (m *MockEmbedder) Provider() string {
	return "mock"
}

// Model returns the model name
func (m *MockEmbedder) Model() string {
	return m.model
}

// Close releases resources (no-op for mock)
func (m *MockEmbedder) Close() error {
	return nil
}
