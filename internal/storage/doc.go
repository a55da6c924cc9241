// Package storage persists chunked documents in SQLite.
//
// Tables:
//   - collections: named document sets bound to one embedding model
//   - documents: source files with SHA-256 content hashes
//   - chunks: chunk text with sentence and byte spans
//   - embeddings: little-endian float32 vectors per chunk
//   - chunks_fts: FTS5 index over chunk text, kept in sync by triggers
//
// Every operation is available on both *SQLiteStorage and the Tx returned
// by BeginTx:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertDocument(ctx, doc); err != nil {
//	    return err
//	}
//	if err := tx.DeleteChunksByDocument(ctx, doc.ID); err != nil {
//	    return err
//	}
//	// ... UpsertChunk and UpsertEmbedding per chunk
//	return tx.Commit()
//
// # Build Tags
//
// With -tags sqlite_vec the mattn/go-sqlite3 driver is used and vector
// search runs in SQL through vec_distance_cosine. The default build uses
// modernc.org/sqlite and ranks vectors in Go.
package storage
