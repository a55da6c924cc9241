package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions are not supported")
)

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries implements every Storage operation against a querier, so the
// same code serves both the database and an open transaction.
type queries struct {
	q querier
}

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	*queries
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single connection: SQLite has one writer and :memory: databases are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies pending migrations. Use ":memory:" for a throwaway database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{queries: &queries{q: db}, db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{queries: &queries{q: tx}, tx: tx}, nil
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	*queries
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Close rolls back the transaction if it is still open.
func (t *sqliteTx) Close() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// Both drivers surface the same SQLite message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func timeOrZero(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Collection operations

const collectionColumns = `id, name, root_path, provider, model, dimension, chunking_policy,
	total_documents, total_chunks, index_version, last_indexed_at, created_at, updated_at`

func scanCollection(row interface{ Scan(...interface{}) error }) (*Collection, error) {
	var c Collection
	var policy sql.NullString
	var lastIndexedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.RootPath, &c.Provider, &c.Model, &c.Dimension, &policy,
		&c.TotalDocuments, &c.TotalChunks, &c.IndexVersion, &lastIndexedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ChunkingPolicy = policy.String
	c.LastIndexedAt = timeOrZero(lastIndexedAt)
	return &c, nil
}

func (s *queries) CreateCollection(ctx context.Context, c *Collection) error {
	if c.IndexVersion == "" {
		c.IndexVersion = CurrentSchemaVersion
	}
	now := time.Now()
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO collections (name, root_path, provider, model, dimension, chunking_policy, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.RootPath, c.Provider, c.Model, c.Dimension, c.ChunkingPolicy, c.IndexVersion, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("collection %q: %w", c.Name, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *queries) GetCollection(ctx context.Context, name string) (*Collection, error) {
	c, err := scanCollection(s.q.QueryRowContext(ctx,
		"SELECT "+collectionColumns+" FROM collections WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *queries) GetCollectionByID(ctx context.Context, id int64) (*Collection, error) {
	c, err := scanCollection(s.q.QueryRowContext(ctx,
		"SELECT "+collectionColumns+" FROM collections WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *queries) UpdateCollection(ctx context.Context, c *Collection) error {
	now := time.Now()
	result, err := s.q.ExecContext(ctx, `
		UPDATE collections
		SET root_path = ?, provider = ?, model = ?, dimension = ?, chunking_policy = ?,
		    total_documents = ?, total_chunks = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?`,
		c.RootPath, c.Provider, c.Model, c.Dimension, c.ChunkingPolicy,
		c.TotalDocuments, c.TotalChunks, nullTime(c.LastIndexedAt), now, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	c.UpdatedAt = now
	return nil
}

func (s *queries) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+collectionColumns+" FROM collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var collections []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// Document operations

const documentColumns = `id, collection_id, path, format, content_hash, mod_time, size_bytes,
	char_count, sentence_count, warning_count, extract_error, last_indexed_at, created_at, updated_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (*Document, error) {
	var d Document
	var hash []byte
	var modTime, lastIndexedAt sql.NullTime
	var sizeBytes sql.NullInt64
	var extractError sql.NullString
	err := row.Scan(&d.ID, &d.CollectionID, &d.Path, &d.Format, &hash, &modTime, &sizeBytes,
		&d.CharCount, &d.SentenceCount, &d.WarningCount, &extractError, &lastIndexedAt,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	copy(d.ContentHash[:], hash)
	d.ModTime = timeOrZero(modTime)
	d.SizeBytes = sizeBytes.Int64
	if extractError.Valid {
		d.ExtractError = &extractError.String
	}
	d.LastIndexedAt = timeOrZero(lastIndexedAt)
	return &d, nil
}

func (s *queries) UpsertDocument(ctx context.Context, d *Document) error {
	now := time.Now()
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO documents (collection_id, path, format, content_hash, mod_time, size_bytes,
			char_count, sentence_count, warning_count, extract_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, path) DO UPDATE SET
			format = excluded.format,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			char_count = excluded.char_count,
			sentence_count = excluded.sentence_count,
			warning_count = excluded.warning_count,
			extract_error = excluded.extract_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		d.CollectionID, d.Path, d.Format, d.ContentHash[:], nullTime(d.ModTime), d.SizeBytes,
		d.CharCount, d.SentenceCount, d.WarningCount, d.ExtractError, now, now, now,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	d.LastIndexedAt = now
	d.UpdatedAt = now
	return nil
}

func (s *queries) GetDocument(ctx context.Context, collectionID int64, path string) (*Document, error) {
	d, err := scanDocument(s.q.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection_id = ? AND path = ?", collectionID, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *queries) GetDocumentByID(ctx context.Context, documentID int64) (*Document, error) {
	d, err := scanDocument(s.q.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// DeleteDocument removes a document. Its chunks and their embeddings go
// with it through ON DELETE CASCADE.
func (s *queries) DeleteDocument(ctx context.Context, documentID int64) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", documentID)
	return err
}

func (s *queries) ListDocuments(ctx context.Context, collectionID int64) ([]*Document, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE collection_id = ? ORDER BY path", collectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Chunk operations

const chunkColumns = `id, document_id, chunk_index, content, content_hash, token_count,
	sentence_count, start_sentence, end_sentence, start_char, end_char, created_at`

func scanChunk(row interface{ Scan(...interface{}) error }) (*Chunk, error) {
	var c Chunk
	var hash []byte
	var tokenCount sql.NullInt64
	err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &hash, &tokenCount,
		&c.SentenceCount, &c.StartSentence, &c.EndSentence, &c.StartChar, &c.EndChar, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	copy(c.ContentHash[:], hash)
	c.TokenCount = int(tokenCount.Int64)
	return &c, nil
}

func (s *queries) UpsertChunk(ctx context.Context, c *Chunk) error {
	now := time.Now()
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO chunks (document_id, chunk_index, content, content_hash, token_count,
			sentence_count, start_sentence, end_sentence, start_char, end_char, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, chunk_index) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			token_count = excluded.token_count,
			sentence_count = excluded.sentence_count,
			start_sentence = excluded.start_sentence,
			end_sentence = excluded.end_sentence,
			start_char = excluded.start_char,
			end_char = excluded.end_char
		RETURNING id, created_at`,
		c.DocumentID, c.ChunkIndex, c.Content, c.ContentHash[:], c.TokenCount,
		c.SentenceCount, c.StartSentence, c.EndSentence, c.StartChar, c.EndChar, now,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

func (s *queries) GetChunk(ctx context.Context, chunkID int64) (*Chunk, error) {
	c, err := scanChunk(s.q.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", chunkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *queries) ListChunksByDocument(ctx context.Context, documentID int64) ([]*Chunk, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *queries) DeleteChunksByDocument(ctx context.Context, documentID int64) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	return err
}

// Embedding operations

func (s *queries) UpsertEmbedding(ctx context.Context, e *Embedding) error {
	now := time.Now()
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
		RETURNING id`,
		e.ChunkID, e.Vector, e.Dimension, e.Provider, e.Model, now,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	e.CreatedAt = now
	return nil
}

func (s *queries) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	var e Embedding
	err := s.q.QueryRowContext(ctx, `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings WHERE chunk_id = ?`, chunkID,
	).Scan(&e.ID, &e.ChunkID, &e.Vector, &e.Dimension, &e.Provider, &e.Model, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Search operations

func (s *queries) SearchVector(ctx context.Context, collectionID int64, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.q, collectionID, queryVector, limit, filters)
}

func (s *queries) SearchText(ctx context.Context, collectionID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.q, collectionID, query, limit, filters)
}

// Status operations

func (s *queries) GetStatus(ctx context.Context, collectionID int64) (*CollectionStatus, error) {
	collection, err := s.GetCollectionByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	status := &CollectionStatus{
		Collection:    collection,
		LastIndexedAt: collection.LastIndexedAt,
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(warning_count), 0)
		FROM documents WHERE collection_id = ?`, collectionID,
	).Scan(&status.DocumentsCount, &status.WarningsCount)
	if err != nil {
		return nil, err
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE d.collection_id = ?`, collectionID,
	).Scan(&status.ChunksCount)
	if err != nil {
		return nil, err
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings e
		JOIN chunks c ON e.chunk_id = c.id
		JOIN documents d ON c.document_id = d.id
		WHERE d.collection_id = ?`, collectionID,
	).Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	// Database size covers every collection in the file
	var pageCount, pageSize int
	if err := s.q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var ftsTable string
	ftsErr := s.q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='chunks_fts'").Scan(&ftsTable)

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     ftsErr == nil,
	}

	return status, nil
}
