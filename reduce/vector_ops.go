package reduce

import (
	"math"

	"vector-viz/config"
)

/*
Distance calculates the distance between two vectors for the given metric
*/
func Distance(metric config.DistanceType, a, b []float64) float64 {
	switch metric {
	case config.DistanceTypeCosine:
		return CosineDistance(a, b)
	case config.DistanceTypeManhattan:
		return ManhattanDistance(a, b)
	case config.DistanceTypeHamming:
		return HammingDistance(a, b)
	default:
		return EuclideanDistance(a, b)
	}
}

// EuclideanDistance is the L2 distance
func EuclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

/*
CosineDistance is 1 - cosine similarity; zero vectors are at maximum distance
*/
func CosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Clamp similarity to [-1, 1] due to floating point precision
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}

// ManhattanDistance is the L1 distance
func ManhattanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// HammingDistance counts differing components
func HammingDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		if a[i] != b[i] {
			sum++
		}
	}
	return sum
}

/*
allFinite reports whether every component of every vector is a finite number
*/
func allFinite(data [][]float64) bool {
	for _, v := range data {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
