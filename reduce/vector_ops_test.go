package reduce

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"vector-viz/config"
)

func TestDistances(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}

	assert.InDelta(t, math.Sqrt2, Distance(config.DistanceTypeEuclidean, a, b), 1e-12)
	assert.InDelta(t, 1.0, Distance(config.DistanceTypeCosine, a, b), 1e-12)
	assert.InDelta(t, 2.0, Distance(config.DistanceTypeManhattan, a, b), 1e-12)
	assert.InDelta(t, 2.0, Distance(config.DistanceTypeHamming, a, b), 1e-12)

	// identical direction
	assert.InDelta(t, 0.0, CosineDistance([]float64{1, 1}, []float64{3, 3}), 1e-12)
	// zero vectors are at maximum distance
	assert.Equal(t, 1.0, CosineDistance([]float64{0, 0}, []float64{1, 1}))
}

func TestAllFinite(t *testing.T) {
	assert.True(t, allFinite([][]float64{{1, 2}, {3, 4}}))
	assert.False(t, allFinite([][]float64{{1, math.NaN()}}))
	assert.False(t, allFinite([][]float64{{math.Inf(-1)}}))
}
