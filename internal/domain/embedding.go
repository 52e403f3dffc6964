package domain

import (
	"fmt"
	"math"
)

// EmbeddingResponse represents a unified embedding result: one vector per
// input item, in input order. All vectors from a single response have the
// same dimension.
type EmbeddingResponse struct {
	Vectors  [][]float64 `json:"vectors"`
	Model    string      `json:"model"`
	Provider string      `json:"provider"`
	Usage    Usage       `json:"usage"`
}

// Dimension returns the vector dimension, or 0 for an empty response.
func (r *EmbeddingResponse) Dimension() int {
	if len(r.Vectors) == 0 {
		return 0
	}
	return len(r.Vectors[0])
}

// CosineSimilarity computes the cosine similarity of two vectors. Unlike
// the numeric request options, dimension agreement is a hard requirement:
// a mismatch indicates a programming error and is reported, never clamped
// or silently truncated. Zero vectors yield 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Normalize returns the L2-normalized copy of v. A zero vector normalizes
// to a zero vector.
func Normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}

	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}

	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
