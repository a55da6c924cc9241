package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting and querying chunked documents
type Storage interface {
	// Collection operations
	CreateCollection(ctx context.Context, collection *Collection) error
	GetCollection(ctx context.Context, name string) (*Collection, error)
	GetCollectionByID(ctx context.Context, id int64) (*Collection, error)
	UpdateCollection(ctx context.Context, collection *Collection) error
	ListCollections(ctx context.Context) ([]*Collection, error)

	// Document operations
	UpsertDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, collectionID int64, path string) (*Document, error)
	GetDocumentByID(ctx context.Context, documentID int64) (*Document, error)
	DeleteDocument(ctx context.Context, documentID int64) error
	ListDocuments(ctx context.Context, collectionID int64) ([]*Document, error)

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID int64) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations. A collectionID of 0 searches every collection.
	SearchVector(ctx context.Context, collectionID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, collectionID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context, collectionID int64) (*CollectionStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Collection is a named set of documents indexed from one root directory
// with one embedding model
type Collection struct {
	ID             int64
	Name           string
	RootPath       string
	Provider       string
	Model          string
	Dimension      int
	ChunkingPolicy string
	TotalDocuments int
	TotalChunks    int
	IndexVersion   string
	LastIndexedAt  time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Document is a tracked source file
type Document struct {
	ID            int64
	CollectionID  int64
	Path          string // Relative to collection root
	Format        string // pdf, html or text
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	CharCount     int // Bytes of extracted text
	SentenceCount int
	WarningCount  int     // Sentences that could not be located
	ExtractError  *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is a stored chunk with its position in the extracted document text
type Chunk struct {
	ID            int64
	DocumentID    int64
	ChunkIndex    int
	Content       string
	ContentHash   [32]byte
	TokenCount    int
	SentenceCount int
	StartSentence int
	EndSentence   int
	StartChar     int
	EndChar       int
	CreatedAt     time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	PathPattern  string   // Glob pattern for document paths
	Formats      []string // Document formats to include
	MinRelevance float64  // Minimum relevance score

	// Vector search only: restrict to embeddings from this provider and
	// model. Empty matches any.
	Provider string
	Model    string
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64
}

// CollectionStatus contains statistics about an indexed collection
type CollectionStatus struct {
	Collection      *Collection
	DocumentsCount  int
	ChunksCount     int
	EmbeddingsCount int
	WarningsCount   int
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}
