package embedding

import "math"

// Cosine returns the cosine similarity between two vectors.
// Result is in [-1, 1]; for the normalized embeddings used here it is
// effectively [0, 1]. Mismatched lengths or zero vectors yield 0, which
// callers treat as "no signal" rather than an error.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
