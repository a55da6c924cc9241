// Package searcher finds stored chunks by meaning, by keyword, or both.
//
// Three modes are supported:
//   - Hybrid (default): vector and BM25 results merged with Reciprocal
//     Rank Fusion, score(d) = Σ 1/(k + rank(d)) with k = 60
//   - Vector: cosine similarity between the query embedding and chunk
//     embeddings
//   - Keyword: SQLite FTS5 BM25 over chunk text
//
// Usage:
//
//	s := searcher.NewSearcher(store, emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:      "how are refunds approved",
//	    Collection: "handbook",
//	    Limit:      5,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s %d-%d (%.3f)\n", r.Rank,
//	        r.Document.Path, r.Document.StartChar, r.Document.EndChar, r.RelevanceScore)
//	}
//
// The query is embedded with the searcher's embedder, which must be the
// provider and model the collection was indexed with; otherwise vector
// search fails with ErrModelMismatch and hybrid search falls back to
// keywords. In hybrid mode either side may fail alone.
//
// Responses are cached in an expiring LRU keyed on the full request when
// SearchRequest.UseCache is set. Call InvalidateCache after reindexing.
package searcher
