package chunker

import "fmt"

// PolicyKind selects how the similarity threshold is chosen
type PolicyKind int

const (
	// PolicyFixed uses a caller-supplied threshold
	PolicyFixed PolicyKind = iota
	// PolicyAdaptive derives the threshold from a percentile of the series
	PolicyAdaptive
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyFixed:
		return "fixed"
	case PolicyAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
}

// Defaults for the two policies
const (
	DefaultSimilarityThreshold = 0.7
	DefaultPercentile          = 25.0
)

// BoundaryPolicy decides which similarity dips become chunk boundaries.
// Threshold is read for PolicyFixed, Percentile for PolicyAdaptive.
type BoundaryPolicy struct {
	Kind       PolicyKind `json:"kind"`
	Threshold  float64    `json:"threshold,omitempty"`
	Percentile float64    `json:"percentile,omitempty"`
}

// Fixed returns a policy that splits wherever similarity < threshold
func Fixed(threshold float64) BoundaryPolicy {
	return BoundaryPolicy{Kind: PolicyFixed, Threshold: threshold}
}

// Adaptive returns a policy that splits wherever similarity falls below the
// p-th percentile of the document's own similarity series
func Adaptive(percentile float64) BoundaryPolicy {
	return BoundaryPolicy{Kind: PolicyAdaptive, Percentile: percentile}
}

func (p BoundaryPolicy) String() string {
	if p.Kind == PolicyAdaptive {
		return fmt.Sprintf("adaptive(p%g)", p.Percentile)
	}
	return fmt.Sprintf("fixed(%g)", p.Threshold)
}

// Detection is the full outcome of boundary detection
type Detection struct {
	Similarities []float64
	Boundaries   []int
	Threshold    float64
}

// DetectBoundaries computes the window similarity series and applies the
// policy to it. Boundaries are sentence positions: a boundary b means a new
// chunk starts at sentence b. They are strictly increasing and lie in (0, n).
func DetectBoundaries(embeddings [][]float32, w int, policy BoundaryPolicy) *Detection {
	sims := WindowSimilarities(embeddings, w)

	threshold := policy.Threshold
	if policy.Kind == PolicyAdaptive {
		threshold = Percentile(sims, policy.Percentile)
	}

	boundaries := make([]int, 0)
	for j, s := range sims {
		if s < threshold {
			boundaries = append(boundaries, j+w)
		}
	}

	return &Detection{
		Similarities: sims,
		Boundaries:   boundaries,
		Threshold:    threshold,
	}
}

// FindBoundaries returns the sentence positions where new chunks begin
func FindBoundaries(embeddings [][]float32, w int, policy BoundaryPolicy) []int {
	return DetectBoundaries(embeddings, w, policy).Boundaries
}
