package vectorstore

import "math"

// Similarity computes sign-normalized cosine similarity between two vectors.
//
// The raw cosine value's absolute value is returned, so anti-correlated and
// correlated vectors score identically. This is a deliberate bag-of-content
// measure, not a general-purpose cosine metric: for retrieval over text
// embeddings the direction of correlation carries no useful signal.
//
// Returns a value in [0, 1]. Returns 0 when the vectors differ in length or
// either has zero magnitude.
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(magA) * math.Sqrt(magB))

	// Floating error can push the ratio marginally past 1.
	abs := math.Abs(cos)
	if abs > 1 {
		abs = 1
	}
	return float32(abs)
}
