// Package types provides shared type definitions for semchunk.
//
// This package defines the domain types passed between the segmenter, the
// chunker, the storage layer and the MCP tools.
//
// # Core Types
//
// Sentence is a span of document text. In offset-preserving mode it carries
// inclusive byte offsets into the original document:
//
//	s := types.Sentence{Text: "A cat sat.", Start: 0, End: 9, Located: true}
//
// Chunk is the output unit of the chunker:
//
//	chunk := types.Chunk{
//	    ChunkID:       0,
//	    Text:          "A cat sat. A dog ran. ",
//	    SentenceCount: 2,
//	    StartSentence: 0,
//	    EndSentence:   1,
//	    StartChar:     0,
//	    EndChar:       21,
//	    HasOffsets:    true,
//	}
//
// Chunks are produced in document order. For consecutive chunks,
// EndSentence+1 == next.StartSentence, and in offset mode
// EndChar+1 == next.StartChar, so concatenating chunk texts reproduces the
// input exactly.
//
// # Warnings
//
// UnlocatableSentence reports a sentence the splitter produced but that could
// not be found in the source text. It is carried in SegmentResult.Warnings
// instead of being dropped silently.
//
// # Search Results
//
// SearchResult pairs stored chunk content with relevance scoring and the
// location of the chunk inside its source document.
package types
