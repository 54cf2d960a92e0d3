// Package mathutil provides the vector math shared by the HNSW index and
// the vector store.
package mathutil

import "math"

// Dot computes the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm computes the L2 norm of a vector.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineSimilarity computes cosine similarity between two vectors.
// A zero vector has similarity 0 against anything, including itself.
func CosineSimilarity(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// CosineDistance converts cosine similarity to a distance metric:
// 0 for identical directions, 2 for opposite.
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}
