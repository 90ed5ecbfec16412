// Package knowledge stores department-tagged document chunks with vector
// search on PostgreSQL + pgvector.
package knowledge

import (
	"time"

	"github.com/opsdesk/deskmate/internal/department"
)

// VectorDimension is the embedding dimension of the knowledge_chunks table.
// Changing it requires a schema migration.
const VectorDimension = 768

// Chunk is one stored knowledge fragment: a piece of a policy document,
// runbook, or FAQ entry, tagged with the department it belongs to.
type Chunk struct {
	ID         string
	Content    string
	Department department.Department
	CreatedAt  time.Time
}

// Result is a single search hit with its cosine distance from the query.
// Lower distance means more similar; pgvector's <=> operator yields values
// in [0, 2].
type Result struct {
	Chunk    Chunk
	Distance float64
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK       int
	department department.Department
	timeout    time.Duration
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithDepartment restricts results to one department's chunks.
// The General fallback never filters; passing it is a no-op.
func WithDepartment(d department.Department) SearchOption {
	return func(c *searchConfig) {
		if !d.IsGeneral() {
			c.department = d
		}
	}
}

// WithTimeout overrides the per-search query timeout. Default is 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
