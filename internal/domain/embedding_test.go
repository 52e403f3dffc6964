package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberhq/ember/internal/domain"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("should return one for a vector with itself", func(t *testing.T) {
		v := []float64{0.3, -0.5, 0.8, 0.1}

		sim, err := domain.CosineSimilarity(v, v)

		require.NoError(t, err)
		require.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("should return zero for orthogonal vectors", func(t *testing.T) {
		sim, err := domain.CosineSimilarity([]float64{1, 0}, []float64{0, 1})

		require.NoError(t, err)
		require.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("should return minus one for opposite vectors", func(t *testing.T) {
		sim, err := domain.CosineSimilarity([]float64{1, 2}, []float64{-1, -2})

		require.NoError(t, err)
		require.InDelta(t, -1.0, sim, 1e-9)
	})

	t.Run("should report dimension mismatch", func(t *testing.T) {
		_, err := domain.CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2})

		require.Error(t, err)
		require.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("should return zero for a zero vector", func(t *testing.T) {
		sim, err := domain.CosineSimilarity([]float64{0, 0}, []float64{1, 1})

		require.NoError(t, err)
		require.InDelta(t, 0.0, sim, 1e-9)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("should produce a unit vector", func(t *testing.T) {
		out := domain.Normalize([]float64{3, 4})

		require.InDelta(t, 0.6, out[0], 1e-9)
		require.InDelta(t, 0.8, out[1], 1e-9)

		var norm float64
		for _, x := range out {
			norm += x * x
		}
		require.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
	})

	t.Run("should keep a zero vector zero", func(t *testing.T) {
		out := domain.Normalize([]float64{0, 0, 0})

		require.Equal(t, []float64{0, 0, 0}, out)
	})
}

func TestEmbeddingResponse_Dimension(t *testing.T) {
	t.Run("should report the vector dimension", func(t *testing.T) {
		resp := &domain.EmbeddingResponse{Vectors: [][]float64{{1, 2, 3}}}
		require.Equal(t, 3, resp.Dimension())
	})

	t.Run("should report zero for an empty response", func(t *testing.T) {
		resp := &domain.EmbeddingResponse{}
		require.Equal(t, 0, resp.Dimension())
	})
}
