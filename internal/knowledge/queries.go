package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// UpsertChunkParams carries one chunk to insert or update.
type UpsertChunkParams struct {
	ID         string
	Content    string
	Department string
	Embedding  *pgvector.Vector
	CreatedAt  pgtype.Timestamptz
}

// SearchChunksParams carries a filtered vector search request.
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector
	Department     string
	ResultLimit    int32
}

// SearchChunksAllParams carries an unfiltered vector search request.
type SearchChunksAllParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

// ChunkRow is one row returned by the search queries.
type ChunkRow struct {
	ID         string
	Content    string
	Department string
	CreatedAt  pgtype.Timestamptz
	Distance   float64
}

// DB is the subset of pgxpool.Pool used by Queries.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implements Querier against the knowledge_chunks table.
type Queries struct {
	db DB
}

// NewQueries creates a Queries bound to the given connection pool.
func NewQueries(db DB) *Queries {
	return &Queries{db: db}
}

const upsertChunkSQL = `
INSERT INTO knowledge_chunks (id, content, department, embedding, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
ON CONFLICT (id) DO UPDATE SET
    content    = EXCLUDED.content,
    department = EXCLUDED.department,
    embedding  = EXCLUDED.embedding
`

// UpsertChunk inserts a chunk, replacing content and embedding if the ID
// already exists.
func (q *Queries) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	var createdAt any
	if arg.CreatedAt.Valid {
		createdAt = arg.CreatedAt
	}
	_, err := q.db.Exec(ctx, upsertChunkSQL,
		arg.ID, arg.Content, arg.Department, arg.Embedding, createdAt)
	return err
}

const searchChunksSQL = `
SELECT id, content, department, created_at, embedding <=> $1 AS distance
FROM knowledge_chunks
WHERE department = $2
ORDER BY embedding <=> $1
LIMIT $3
`

// SearchChunks runs a department-filtered k-NN search ordered by ascending
// cosine distance.
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL,
		arg.QueryEmbedding, arg.Department, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

const searchChunksAllSQL = `
SELECT id, content, department, created_at, embedding <=> $1 AS distance
FROM knowledge_chunks
ORDER BY embedding <=> $1
LIMIT $2
`

// SearchChunksAll runs an unfiltered k-NN search ordered by ascending
// cosine distance.
func (q *Queries) SearchChunksAll(ctx context.Context, arg SearchChunksAllParams) ([]ChunkRow, error) {
	rows, err := q.db.Query(ctx, searchChunksAllSQL,
		arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// CountChunks counts stored chunks, optionally for one department.
// An empty department counts everything.
func (q *Queries) CountChunks(ctx context.Context, dept string) (int64, error) {
	var count int64
	var err error
	if dept == "" {
		err = q.db.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks`).Scan(&count)
	} else {
		err = q.db.QueryRow(ctx,
			`SELECT count(*) FROM knowledge_chunks WHERE department = $1`, dept).Scan(&count)
	}
	return count, err
}

// DeleteChunk removes a chunk by ID.
func (q *Queries) DeleteChunk(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE id = $1`, id)
	return err
}

func scanChunkRows(rows pgx.Rows) ([]ChunkRow, error) {
	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Department, &r.CreatedAt, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
