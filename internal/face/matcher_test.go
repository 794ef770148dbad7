package face

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEuclideanDistance(t *testing.T) {
	assert.Equal(t, 5.0, EuclideanDistance([]float32{0, 0}, []float32{3, 4}))
	assert.Equal(t, 0.0, EuclideanDistance([]float32{1, 2}, []float32{1, 2}))
}

func TestEuclideanDistance_MismatchedLengths(t *testing.T) {
	d := EuclideanDistance([]float32{1, 2}, []float32{1, 2, 3})
	assert.True(t, math.IsInf(d, 1))
}

func TestMatchAny_StrictThresholdBoundary(t *testing.T) {
	m := NewEuclideanMatcher(2.0)
	refs := [][]float32{{0, 0}}

	// Distance exactly at the threshold must not match.
	matched, best := m.MatchAny([]float32{2, 0}, refs)
	assert.False(t, matched)
	assert.Equal(t, 2.0, best)

	matched, _ = m.MatchAny([]float32{1, 1}, refs)
	assert.True(t, matched)
}

func TestMatchAny_AnyReferenceSuffices(t *testing.T) {
	m := NewEuclideanMatcher(1.0)
	refs := [][]float32{
		{10, 10},
		{0.5, 0},
		{-10, 3},
	}

	matched, best := m.MatchAny([]float32{0, 0}, refs)
	assert.True(t, matched)
	assert.Equal(t, 0.5, best)
}

func TestMatchAny_NoReferences(t *testing.T) {
	m := NewEuclideanMatcher(0.6)
	matched, best := m.MatchAny([]float32{1, 2}, nil)
	assert.False(t, matched)
	assert.True(t, math.IsInf(best, 1))
}

func TestDistances_OnePerReference(t *testing.T) {
	m := NewEuclideanMatcher(0.6)
	refs := [][]float32{{0, 0}, {3, 4}}
	distances := m.Distances([]float32{0, 0}, refs)

	assert.Equal(t, []float64{0, 5}, distances)
}
