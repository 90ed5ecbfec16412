package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
	"github.com/opsdesk/deskmate/internal/testutil"
)

// axisVector returns a 768-dim unit vector along the given axis, used to
// construct exact distance geometry against the real pgvector operator.
func axisVector(axis int) []float32 {
	v := make([]float32, VectorDimension)
	v[axis] = 1
	return v
}

func TestStoreRoundTripIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	mock := &testutil.MockEmbedder{
		Dimension: VectorDimension,
		Vectors: map[string][]float32{
			"password resets happen via the IT portal": axisVector(0),
			"vacation days accrue monthly":             axisVector(1),
			"badge replacement takes one business day": axisVector(2),
			"how do I reset my password":               axisVector(0),
		},
	}
	service := embedding.NewService(nil, nil, embedding.WithEmbedder(mock))
	store := New(NewQueries(tdb.Pool), service, nil)

	chunks := []Chunk{
		{ID: "it:1", Content: "password resets happen via the IT portal", Department: "IT"},
		{ID: "hr:1", Content: "vacation days accrue monthly", Department: "HR"},
		{ID: "sec:1", Content: "badge replacement takes one business day", Department: "Security"},
	}
	stored, err := store.AddBatch(ctx, chunks)
	require.NoError(t, err)
	require.Equal(t, 3, stored)

	t.Run("filtered search orders by distance", func(t *testing.T) {
		results, err := store.Search(ctx, "how do I reset my password",
			WithTopK(10), WithDepartment("IT"))
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "it:1", results[0].Chunk.ID)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	})

	t.Run("unfiltered search sees every department", func(t *testing.T) {
		results, err := store.Search(ctx, "how do I reset my password",
			WithTopK(10))
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "it:1", results[0].Chunk.ID)
		// Orthogonal vectors sit at cosine distance 1.
		assert.InDelta(t, 1.0, results[1].Distance, 1e-6)
		assert.InDelta(t, 1.0, results[2].Distance, 1e-6)
	})

	t.Run("upsert replaces content", func(t *testing.T) {
		updated := chunks[0]
		updated.Content = "password resets happen via the IT portal"
		require.NoError(t, store.Add(ctx, updated))

		n, err := store.Count(ctx, "IT")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("count and delete", func(t *testing.T) {
		total, err := store.Count(ctx, department.General)
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		require.NoError(t, store.Delete(ctx, "sec:1"))

		total, err = store.Count(ctx, department.General)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})
}
