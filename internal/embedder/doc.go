// Package embedder turns sentences and chunks into vector embeddings.
//
// Four providers share one interface: Jina AI and OpenAI (remote APIs),
// Ollama (a local model server) and a deterministic offline provider that
// hashes words into signed buckets.
//
// # Basic Usage
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"A cat sat on the mat.", "Bond yields rose."},
//	})
//	vectors := resp.Vectors() // same length and order as Texts
//
// # Provider Selection
//
//  1. If SEMCHUNK_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → local provider (offline mode)
//
// SEMCHUNK_EMBEDDING_MODEL overrides the provider's default model and
// OLLAMA_BASE_URL points the Ollama provider at a non-default server.
//
// # Batching and Caching
//
// A single GenerateBatch call may carry any number of texts. Remote
// providers serve cache hits first, then send the misses in pages of at most
// MaxBatchSize (DefaultBatchSize for Ollama), retrying each page with
// exponential backoff. Cache keys are the SHA-256 of model and text, so a
// model override never returns another model's vector.
//
// # Error Handling
//
//	_, err := emb.GenerateBatch(ctx, req)
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // every retry failed
//	}
package embedder
