// Package indexer builds and maintains document collections.
//
// IndexDirectory walks a root directory, extracts text from each matching
// document, chunks it with byte offsets preserved, embeds every chunk in a
// single batch per document and stores the result:
//
//	idx := indexer.New(store, emb, chunker, log)
//	stats, err := idx.IndexDirectory(ctx, "/path/to/docs", &indexer.Config{
//	    Collection: "handbook",
//	    Chunking:   chunker.DefaultConfig(),
//	    Policy:     chunker.Adaptive(25),
//	})
//
// Re-running is incremental: documents whose SHA-256 content hash has not
// changed are skipped, changed documents have their chunks replaced in one
// transaction, and stored documents missing from disk are removed.
// IndexFile and RemoveFile apply the same logic to a single path and are
// what the file watcher calls.
//
// A collection is bound to the provider and model that built it. Indexing
// with a different model fails with ErrModelMismatch unless Config.Force is
// set, in which case every document is re-embedded.
package indexer
