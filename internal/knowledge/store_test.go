package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
	"github.com/opsdesk/deskmate/internal/testutil"
)

// mockQuerier records calls and returns canned rows.
type mockQuerier struct {
	upserts    []UpsertChunkParams
	upsertErr  error
	rows       []ChunkRow
	searchErr  error
	filtered   []SearchChunksParams
	unfiltered []SearchChunksAllParams
	count      int64
	deleted    []string
}

func (m *mockQuerier) UpsertChunk(_ context.Context, arg UpsertChunkParams) error {
	m.upserts = append(m.upserts, arg)
	return m.upsertErr
}

func (m *mockQuerier) SearchChunks(_ context.Context, arg SearchChunksParams) ([]ChunkRow, error) {
	m.filtered = append(m.filtered, arg)
	return m.rows, m.searchErr
}

func (m *mockQuerier) SearchChunksAll(_ context.Context, arg SearchChunksAllParams) ([]ChunkRow, error) {
	m.unfiltered = append(m.unfiltered, arg)
	return m.rows, m.searchErr
}

func (m *mockQuerier) CountChunks(_ context.Context, _ string) (int64, error) {
	return m.count, nil
}

func (m *mockQuerier) DeleteChunk(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func testStore(q Querier, mock *testutil.MockEmbedder) *Store {
	service := embedding.NewService(nil, nil, embedding.WithEmbedder(mock))
	return New(q, service, nil)
}

func TestStoreAdd(t *testing.T) {
	q := &mockQuerier{}
	store := testStore(q, &testutil.MockEmbedder{Dimension: 4})

	err := store.Add(context.Background(), Chunk{
		ID:         "policy:leave-1",
		Content:    "Employees accrue vacation monthly.",
		Department: "HR",
	})
	require.NoError(t, err)

	require.Len(t, q.upserts, 1)
	got := q.upserts[0]
	assert.Equal(t, "policy:leave-1", got.ID)
	assert.Equal(t, "HR", got.Department)
	require.NotNil(t, got.Embedding)
	assert.Len(t, got.Embedding.Slice(), 4)
	assert.False(t, got.CreatedAt.Valid, "zero CreatedAt defers to the database")
}

func TestStoreAddEmbeddingFailure(t *testing.T) {
	q := &mockQuerier{}
	store := testStore(q, &testutil.MockEmbedder{Err: errors.New("offline")})

	err := store.Add(context.Background(), Chunk{ID: "x", Content: "y"})
	assert.ErrorIs(t, err, embedding.ErrUnavailable)
	assert.Empty(t, q.upserts, "no row may be written without an embedding")
}

func TestStoreAddBatch(t *testing.T) {
	q := &mockQuerier{}
	mock := &testutil.MockEmbedder{Dimension: 4}
	store := testStore(q, mock)

	chunks := []Chunk{
		{ID: "a", Content: "first", Department: "IT"},
		{ID: "b", Content: "second", Department: "IT"},
		{ID: "c", Content: "third", Department: "HR"},
	}

	stored, err := store.AddBatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 3, stored)
	assert.Len(t, q.upserts, 3)
	assert.Equal(t, 1, mock.Calls(), "batch must be a single model request")
}

func TestStoreAddBatchAllStoresFail(t *testing.T) {
	q := &mockQuerier{upsertErr: errors.New("disk full")}
	store := testStore(q, &testutil.MockEmbedder{Dimension: 4})

	stored, err := store.AddBatch(context.Background(), []Chunk{
		{ID: "a", Content: "first"},
	})
	assert.Error(t, err)
	assert.Zero(t, stored)
}

func TestStoreSearchFiltered(t *testing.T) {
	now := time.Now()
	q := &mockQuerier{
		rows: []ChunkRow{
			{ID: "a", Content: "reset guide", Department: "IT", Distance: 0.2,
				CreatedAt: pgtype.Timestamptz{Time: now, Valid: true}},
			{ID: "b", Content: "vpn setup", Department: "IT", Distance: 0.7},
		},
	}
	store := testStore(q, &testutil.MockEmbedder{Dimension: 4})

	results, err := store.Search(context.Background(), "vpn help",
		WithTopK(10), WithDepartment("IT"))
	require.NoError(t, err)

	require.Len(t, q.filtered, 1)
	assert.Equal(t, "IT", q.filtered[0].Department)
	assert.Equal(t, int32(10), q.filtered[0].ResultLimit)
	assert.Empty(t, q.unfiltered)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.InDelta(t, 0.2, results[0].Distance, 1e-9)
	assert.Equal(t, now, results[0].Chunk.CreatedAt)
	assert.Equal(t, department.Department("IT"), results[1].Chunk.Department)
}

func TestStoreSearchGeneralIsUnfiltered(t *testing.T) {
	q := &mockQuerier{}
	store := testStore(q, &testutil.MockEmbedder{Dimension: 4})

	_, err := store.Search(context.Background(), "anything",
		WithDepartment(department.General))
	require.NoError(t, err)

	assert.Empty(t, q.filtered)
	assert.Len(t, q.unfiltered, 1)
}

func TestStoreSearchEmbeddingFailure(t *testing.T) {
	q := &mockQuerier{}
	store := testStore(q, &testutil.MockEmbedder{Err: errors.New("offline")})

	_, err := store.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, embedding.ErrUnavailable)
	assert.Empty(t, q.filtered)
	assert.Empty(t, q.unfiltered)
}

func TestStoreCount(t *testing.T) {
	q := &mockQuerier{count: 42}
	store := testStore(q, &testutil.MockEmbedder{})

	n, err := store.Count(context.Background(), "HR")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestStoreDelete(t *testing.T) {
	q := &mockQuerier{}
	store := testStore(q, &testutil.MockEmbedder{})

	require.NoError(t, store.Delete(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, q.deleted)
}
