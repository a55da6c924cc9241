// Package segmenter splits documents into sentences.
//
// Two variants are provided. Segment normalizes whitespace first and returns
// bare sentence strings. SegmentWithOffsets works on the unmodified text and
// records the inclusive byte range of every sentence, which is what lets the
// chunker slice chunks straight out of the original document.
//
// Sentence location uses a moving cursor: each sentence is searched for
// exactly at or after the end of the previous one, and if that fails a
// whitespace-tolerant pattern is tried. A sentence that still cannot be found
// is reported in SegmentResult.Warnings together with the cursor position.
//
//	seg, err := segmenter.NewDefault()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res := seg.SegmentWithOffsets(text)
//	usable := segmenter.Filter(res.Sentences, segmenter.DefaultMinSentenceLength)
package segmenter
