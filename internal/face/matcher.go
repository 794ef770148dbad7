package face

import "math"

// Matcher decides whether a probe embedding belongs to the enrolled subject.
// Distances returns one score per reference embedding (lower is more
// similar); MatchAny applies the threshold policy across all of them.
type Matcher interface {
	Distances(probe []float32, refs [][]float32) []float64
	MatchAny(probe []float32, refs [][]float32) (bool, float64)
}

// EuclideanMatcher compares embeddings by L2 distance. A probe matches when
// its distance to any reference is strictly below Threshold; a distance
// exactly at the threshold does not match.
type EuclideanMatcher struct {
	Threshold float64
}

func NewEuclideanMatcher(threshold float64) *EuclideanMatcher {
	return &EuclideanMatcher{Threshold: threshold}
}

func (m *EuclideanMatcher) Distances(probe []float32, refs [][]float32) []float64 {
	distances := make([]float64, len(refs))
	for i, ref := range refs {
		distances[i] = EuclideanDistance(probe, ref)
	}
	return distances
}

func (m *EuclideanMatcher) MatchAny(probe []float32, refs [][]float32) (bool, float64) {
	best := math.Inf(1)
	matched := false
	for _, d := range m.Distances(probe, refs) {
		if d < best {
			best = d
		}
		if d < m.Threshold {
			matched = true
		}
	}
	return matched, best
}

// EuclideanDistance is the L2 distance between two embeddings. Vectors of
// different lengths never match anything, so the distance is +Inf.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
