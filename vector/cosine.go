package vector

import (
	"fmt"
	"math"

	"github.com/hubenschmidt/go-semcat/core"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
// Empty, zero-magnitude, non-finite or unequal-length inputs are
// ErrDimensionMismatch.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", core.ErrDimensionMismatch)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", core.ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-magnitude vector", core.ErrDimensionMismatch)
	}

	if !finite(normA) || !finite(normB) {
		return 0, fmt.Errorf("%w: non-finite component", core.ErrDimensionMismatch)
	}
	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if !finite(sim) {
		return 0, fmt.Errorf("%w: non-finite component", core.ErrDimensionMismatch)
	}
	return sim, nil
}

// CheckVector rejects a vector that cannot produce a finite cosine
// score: empty, zero-magnitude or holding NaN/Inf components.
func CheckVector(v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", core.ErrDimensionMismatch)
	}
	var norm float64
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite component", core.ErrDimensionMismatch)
		}
		norm += x * x
	}
	if norm == 0 {
		return fmt.Errorf("%w: zero-magnitude vector", core.ErrDimensionMismatch)
	}
	if math.IsInf(norm, 0) {
		return fmt.Errorf("%w: magnitude overflows", core.ErrDimensionMismatch)
	}
	return nil
}

// CosineDistance is 1 - CosineSimilarity, in [0, 2].
func CosineDistance(a, b []float64) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Normalize normalizes a vector to unit length.
func Normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	if norm == 0 {
		return v
	}

	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
