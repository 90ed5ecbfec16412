package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
)

// Querier defines the database operations Store needs. The interface lives
// with the consumer, not the provider (like http.RoundTripper, io.Reader),
// so tests can substitute a mock and the production implementation stays in
// Queries.
type Querier interface {
	// UpsertChunk inserts or updates a chunk
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error

	// SearchChunks performs department-filtered vector search
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error)

	// SearchChunksAll performs unfiltered vector search
	SearchChunksAll(ctx context.Context, arg SearchChunksAllParams) ([]ChunkRow, error)

	// CountChunks counts chunks, optionally per department
	CountChunks(ctx context.Context, dept string) (int64, error)

	// DeleteChunk deletes a chunk by ID
	DeleteChunk(ctx context.Context, id string) error
}

// Store manages knowledge chunks with vector search capabilities.
// Embeddings are generated through the shared embedding service; storage and
// k-NN search run on PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries    Querier
	embeddings *embedding.Service
	logger     *slog.Logger
}

// New creates a new Store instance.
//
// Parameters:
//   - querier: Database querier implementing Querier interface
//   - embeddings: Shared embedding service
//   - logger: Logger for debugging (nil = use default)
func New(querier Querier, embeddings *embedding.Service, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		queries:    querier,
		embeddings: embeddings,
		logger:     logger,
	}
}

// Add embeds and stores a single chunk. Uses UPSERT so re-ingesting the same
// ID replaces the previous content and embedding.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	vec, err := s.embeddings.Embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk %q: %w", chunk.ID, err)
	}

	if err := s.upsert(ctx, chunk, vec); err != nil {
		return err
	}

	s.logger.Debug("added chunk", "id", chunk.ID, "department", chunk.Department)
	return nil
}

// AddBatch embeds all chunks in a single model request and stores them.
// Storage failures after a successful embedding are tolerated per chunk; the
// returned count is the number actually stored. An error is returned only
// when embedding fails or no chunk could be stored.
func (s *Store) AddBatch(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	stored := 0
	for i, chunk := range chunks {
		if err := s.upsert(ctx, chunk, vectors[i]); err != nil {
			s.logger.Error("failed to store chunk", "id", chunk.ID, "error", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		return 0, fmt.Errorf("failed to store any of %d chunks", len(chunks))
	}
	s.logger.Debug("batch stored", "total", len(chunks), "stored", stored)
	return stored, nil
}

func (s *Store) upsert(ctx context.Context, chunk Chunk, vec []float32) error {
	v := pgvector.NewVector(vec)
	err := s.queries.UpsertChunk(ctx, UpsertChunkParams{
		ID:         chunk.ID,
		Content:    chunk.Content,
		Department: chunk.Department.String(),
		Embedding:  &v,
		CreatedAt: pgtype.Timestamptz{
			Time:  chunk.CreatedAt,
			Valid: !chunk.CreatedAt.IsZero(),
		},
	})
	if err != nil {
		return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
	}
	return nil
}

// Search performs a k-NN search and returns hits ordered by ascending
// cosine distance. A per-query timeout is applied so vector searches never
// block callers indefinitely.
//
// Example usage:
//
//	results, err := store.Search(ctx, "how do I reset my password",
//	    knowledge.WithTopK(10),
//	    knowledge.WithDepartment("IT"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embeddings.Embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryVec := pgvector.NewVector(vec)

	var rows []ChunkRow
	if cfg.department != "" {
		rows, err = s.queries.SearchChunks(queryCtx, SearchChunksParams{
			QueryEmbedding: &queryVec,
			Department:     cfg.department.String(),
			ResultLimit:    int32(cfg.topK),
		})
	} else {
		rows, err = s.queries.SearchChunksAll(queryCtx, SearchChunksAllParams{
			QueryEmbedding: &queryVec,
			ResultLimit:    int32(cfg.topK),
		})
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return rowsToResults(rows), nil
}

// Count returns the number of stored chunks for a department, or the total
// when dept is empty or General.
func (s *Store) Count(ctx context.Context, dept department.Department) (int, error) {
	filter := dept.String()
	if dept.IsGeneral() {
		filter = ""
	}

	count, err := s.queries.CountChunks(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	if count > math.MaxInt {
		return 0, fmt.Errorf("chunk count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// Delete removes a chunk by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.queries.DeleteChunk(ctx, id); err != nil {
		return fmt.Errorf("deleting chunk %q: %w", id, err)
	}

	s.logger.Debug("deleted chunk", "id", id)
	return nil
}

func rowsToResults(rows []ChunkRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}
		results = append(results, Result{
			Chunk: Chunk{
				ID:         row.ID,
				Content:    row.Content,
				Department: department.Department(row.Department),
				CreatedAt:  createdAt,
			},
			Distance: row.Distance,
		})
	}
	return results
}
