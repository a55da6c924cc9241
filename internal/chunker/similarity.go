package chunker

import (
	"math"
	"sort"
)

// WindowSimilarities slides a window of w sentences across the embeddings and
// returns, for every position i in [w, n-w), the cosine similarity between the
// mean of the w embeddings before i and the mean of the w embeddings from i on.
// Series position j therefore describes sentence position j+w.
//
// The series is empty when n <= 2w or w <= 0.
func WindowSimilarities(embeddings [][]float32, w int) []float64 {
	n := len(embeddings)
	if w <= 0 || n <= 2*w {
		return []float64{}
	}

	sims := make([]float64, 0, n-2*w)
	for i := w; i < n-w; i++ {
		left := mean(embeddings[i-w : i])
		right := mean(embeddings[i : i+w])
		sims = append(sims, cosine(left, right))
	}
	return sims
}

// mean averages vectors component-wise; vectors shorter than the first are zero-padded
func mean(vecs [][]float32) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for k := 0; k < len(out) && k < len(v); k++ {
			out[k] += float64(v[k])
		}
	}
	for k := range out {
		out[k] /= float64(len(vecs))
	}
	return out
}

// cosine returns 0 when either vector has zero norm
func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for k := 0; k < len(a) && k < len(b); k++ {
		dot += a[k] * b[k]
		normA += a[k] * a[k]
		normB += b[k] * b[k]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Percentile returns the p-th percentile of values using linear interpolation
// between closest ranks, matching NumPy's default method. p is clamped to
// [0, 100]. An empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
