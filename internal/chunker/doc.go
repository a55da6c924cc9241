// Package chunker splits prose into semantically coherent chunks.
//
// Text is split into sentences, short sentences are dropped, and the rest are
// embedded in one batch. A window of sentences slides across the embeddings;
// wherever the mean of the window before a position is not similar enough to
// the mean of the window after it, a new chunk begins.
//
// Two boundary policies are available:
//
//   - Fixed: split where similarity < Config.SimilarityThreshold (default 0.7)
//   - Adaptive: split where similarity < the Config.Percentile-th percentile
//     (default 25) of the document's own similarity series
//
// ChunkTextWithOffsets additionally reports byte offsets into the original
// document; its chunks tile the document with no gaps or overlaps, so
// concatenating chunk texts gives back the input byte for byte.
//
// # Usage
//
//	emb, _ := embedder.NewFromEnv()
//	c, err := chunker.New(emb, chunker.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	res, err := c.ChunkTextWithOffsets(ctx, text, chunker.DefaultConfig())
//	for _, ch := range res.Chunks {
//	    fmt.Println(ch.StartChar, ch.EndChar, ch.Text)
//	}
package chunker
