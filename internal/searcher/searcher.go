package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/semchunk-mcp/internal/embedder"
	"github.com/dshills/semchunk-mcp/internal/storage"
	"github.com/dshills/semchunk-mcp/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

// Defaults applied by validateRequest and NewSearcher
const (
	DefaultLimit       = 10
	MaxLimit           = 100
	DefaultRRFConstant = 60
	DefaultCacheSize   = 1000
	DefaultCacheTTL    = time.Hour
)

// ErrModelMismatch is returned by vector search when the query embedder is
// not the model the collection was indexed with
var ErrModelMismatch = errors.New("query embedder does not match collection model")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	Filters     *storage.SearchFilters
	Collection  string  // Empty searches every collection
	UseCache    bool    // Whether to use query cache
	RRFConstant float64 // k value for Reciprocal Rank Fusion (default 60)
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

// Searcher coordinates search operations across vector and text search
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *expirable.LRU[[32]byte, *SearchResponse]
}

// NewSearcher creates a Searcher with the default result cache
func NewSearcher(store storage.Storage, emb embedder.Embedder) *Searcher {
	return NewSearcherWithCache(store, emb, DefaultCacheSize, DefaultCacheTTL)
}

// NewSearcherWithCache creates a Searcher whose result cache holds up to
// size responses for ttl each
func NewSearcherWithCache(store storage.Storage, emb embedder.Embedder, size int, ttl time.Duration) *Searcher {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Searcher{
		storage:  store,
		embedder: emb,
		cache:    expirable.NewLRU[[32]byte, *SearchResponse](size, nil, ttl),
	}
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	var key [32]byte
	if req.UseCache {
		key = computeQueryHash(req)
		if cached, ok := s.cache.Get(key); ok {
			response := copySearchResponse(cached)
			response.CacheHit = true
			response.Duration = time.Since(startTime)
			return response, nil
		}
	}

	var collection *storage.Collection
	if req.Collection != "" {
		c, err := s.storage.GetCollection(ctx, req.Collection)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", req.Collection, err)
		}
		collection = c
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req, collection)
	case SearchModeVector:
		response, err = s.vectorSearch(ctx, req, collection)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req, collection)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.cache.Add(key, copySearchResponse(response))
	}

	return response, nil
}

// searchResult holds results from concurrent search operations
type searchResult struct {
	vectorResults []storage.VectorResult
	textResults   []storage.TextResult
	err           error
}

func collectionID(c *storage.Collection) int64 {
	if c == nil {
		return 0
	}
	return c.ID
}

// queryVector embeds the query with the model the collection was indexed
// with, and returns filters scoping vector search to that provider and
// model. A different provider or vector dimension cannot be compared.
func (s *Searcher) queryVector(ctx context.Context, query string, collection *storage.Collection, filters *storage.SearchFilters) ([]float32, *storage.SearchFilters, error) {
	provider, model := s.embedder.Provider(), s.embedder.Model()
	if collection != nil {
		if collection.Provider != provider {
			return nil, nil, fmt.Errorf("%w: %q uses %s/%s, query embedder is %s/%s", ErrModelMismatch,
				collection.Name, collection.Provider, collection.Model, provider, model)
		}
		model = collection.Model
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query, Model: model})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if collection != nil && collection.Dimension > 0 && len(embedding.Vector) != collection.Dimension {
		return nil, nil, fmt.Errorf("%w: %q stores %d-d vectors, query embedding has %d", ErrModelMismatch,
			collection.Name, collection.Dimension, len(embedding.Vector))
	}

	scoped := storage.SearchFilters{}
	if filters != nil {
		scoped = *filters
	}
	scoped.Provider, scoped.Model = provider, model
	return embedding.Vector, &scoped, nil
}

// runVectorSearch executes vector search in a goroutine
func (s *Searcher) runVectorSearch(ctx context.Context, req SearchRequest, collection *storage.Collection, resultChan chan<- searchResult) {
	var res searchResult
	vector, filters, err := s.queryVector(ctx, req.Query, collection, req.Filters)
	if err != nil {
		res.err = err
	} else {
		res.vectorResults, res.err = s.storage.SearchVector(ctx, collectionID(collection), vector, req.Limit*2, filters)
	}
	resultChan <- res
}

// runTextSearch executes text search in a goroutine
func (s *Searcher) runTextSearch(ctx context.Context, req SearchRequest, collection *storage.Collection, resultChan chan<- searchResult) {
	var res searchResult
	res.textResults, res.err = s.storage.SearchText(ctx, collectionID(collection), req.Query, req.Limit*2, req.Filters)
	resultChan <- res
}

// hybridSearch combines vector and BM25 search using Reciprocal Rank Fusion.
// One side failing degrades to the other.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest, collection *storage.Collection) (*SearchResponse, error) {
	vectorChan := make(chan searchResult, 1)
	textChan := make(chan searchResult, 1)

	go s.runVectorSearch(ctx, req, collection, vectorChan)
	go s.runTextSearch(ctx, req, collection, textChan)

	var vectorRes, textRes searchResult
	var vectorDone, textDone bool
	for !vectorDone || !textDone {
		select {
		case vectorRes = <-vectorChan:
			vectorDone = true
		case textRes = <-textChan:
			textDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%v", vectorRes.err, textRes.err)
	}

	rrf := applyRRF(vectorRes.vectorResults, textRes.textResults, req.RRFConstant)
	results, err := s.fetchResults(ctx, rrf, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes.vectorResults),
		TextResults:   len(textRes.textResults),
	}, nil
}

// vectorSearch performs only vector similarity search
func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest, collection *storage.Collection) (*SearchResponse, error) {
	vector, filters, err := s.queryVector(ctx, req.Query, collection, req.Filters)
	if err != nil {
		return nil, err
	}

	vectorResults, err := s.storage.SearchVector(ctx, collectionID(collection), vector, req.Limit, filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(vectorResults))
	for i, vr := range vectorResults {
		// Cosine can be negative; relevance is reported in [0, 1]
		ranked[i] = rankedResult{chunkID: vr.ChunkID, score: clamp01(vr.SimilarityScore), rank: i + 1}
	}

	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorResults),
	}, nil
}

// keywordSearch performs only BM25 text search
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest, collection *storage.Collection) (*SearchResponse, error) {
	textResults, err := s.storage.SearchText(ctx, collectionID(collection), req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(textResults))
	for i, tr := range textResults {
		ranked[i] = rankedResult{chunkID: tr.ChunkID, score: tr.BM25Score, rank: i + 1}
	}

	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(textResults),
	}, nil
}

// rankedResult represents a chunk with its relevance score and rank
type rankedResult struct {
	chunkID int64
	score   float64
	rank    int
}

// applyRRF applies Reciprocal Rank Fusion to combine vector and text results
// RRF formula: RRF(d) = Σ 1/(k + rank(d))
func applyRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult, k float64) []rankedResult {
	if k == 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[int64]float64)
	for rank, vr := range vectorResults {
		scores[vr.ChunkID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textResults {
		scores[tr.ChunkID] += 1.0 / (k + float64(rank+1))
	}

	results := make([]rankedResult, 0, len(scores))
	for chunkID, score := range scores {
		results = append(results, rankedResult{chunkID: chunkID, score: score})
	}

	sortRankedResults(results)
	for i := range results {
		results[i].rank = i + 1
	}

	return results
}

// fetchResults loads chunk text and document location for ranked results
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	results := make([]types.SearchResult, 0, limit)
	collectionNames := make(map[int64]string)

	for i := 0; i < limit; i++ {
		rr := ranked[i]

		chunk, err := s.storage.GetChunk(ctx, rr.chunkID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue // Removed by a concurrent reindex
		}

		doc, err := s.storage.GetDocumentByID(ctx, chunk.DocumentID)
		if err != nil {
			continue
		}

		name, ok := collectionNames[doc.CollectionID]
		if !ok {
			if c, err := s.storage.GetCollectionByID(ctx, doc.CollectionID); err == nil {
				name = c.Name
			}
			collectionNames[doc.CollectionID] = name
		}

		results = append(results, types.SearchResult{
			ChunkID:        rr.chunkID,
			Rank:           len(results) + 1,
			RelevanceScore: rr.score,
			Document: &types.DocumentInfo{
				Path:       doc.Path,
				Collection: name,
				ChunkIndex: chunk.ChunkIndex,
				StartChar:  chunk.StartChar,
				EndChar:    chunk.EndChar,
			},
			Content: chunk.Content,
		})
	}

	return results, nil
}

// validateRequest ensures search request is valid and fills defaults
func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}

	if req.RRFConstant == 0 {
		req.RRFConstant = DefaultRRFConstant
	}
	if req.RRFConstant < 0 {
		return fmt.Errorf("rrf constant must be positive, got %g", req.RRFConstant)
	}

	if req.Filters != nil && (req.Filters.MinRelevance < 0 || req.Filters.MinRelevance > 1) {
		return fmt.Errorf("min relevance must be in [0, 1], got %g", req.Filters.MinRelevance)
	}

	return nil
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, result := range src.Results {
		dst.Results[i] = result
		// DocumentInfo holds only values, a shallow copy is a deep copy
		if result.Document != nil {
			docCopy := *result.Document
			dst.Results[i].Document = &docCopy
		}
	}
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(req.Collection)
	fmt.Fprintf(&data, "|%d|%g", req.Limit, req.RRFConstant)

	if req.Filters != nil {
		data.WriteString("|filters:")
		data.WriteString(req.Filters.PathPattern)
		data.WriteString("|")
		formats := append([]string(nil), req.Filters.Formats...)
		sort.Strings(formats)
		data.WriteString(strings.Join(formats, ","))
		fmt.Fprintf(&data, "|%.4f", req.Filters.MinRelevance)
	}

	return sha256.Sum256([]byte(data.String()))
}

// sortRankedResults sorts by score descending, ties by chunk id
func sortRankedResults(results []rankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunkID < results[j].chunkID
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InvalidateCache drops every cached response. Called after indexing.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}

// CacheLen reports the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}
