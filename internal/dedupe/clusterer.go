package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
)

// Cluster is a non-empty group of questions judged to ask the same thing.
// Transient: produced by one batch run and handed whole to summarization.
type Cluster []PendingQuestion

// IDs returns the question IDs in the cluster.
func (c Cluster) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c))
	for i, q := range c {
		ids[i] = q.ID
	}
	return ids
}

// Skip reasons attached to questions excluded from clustering.
const (
	SkipReasonMissingID   = "missing identifier"
	SkipReasonMissingText = "missing question text"
)

// Skipped records one question excluded from a batch with the reason, so
// callers can distinguish data problems from clustering outcomes.
type Skipped struct {
	Question PendingQuestion
	Reason   string
}

// Config holds clustering tunables.
type Config struct {
	// Threshold is the minimum cosine similarity for two questions to be
	// considered near-duplicates.
	Threshold float64

	// MaxClusterSize caps one cluster; oversized components are split in
	// input order so no summarization prompt grows without bound.
	MaxClusterSize int
}

// Clusterer partitions pending questions into near-duplicate groups using
// embedding similarity with transitive merging.
type Clusterer struct {
	embeddings *embedding.Service
	threshold  float64
	maxSize    int
	logger     *slog.Logger
}

// NewClusterer creates a Clusterer.
func NewClusterer(embeddings *embedding.Service, cfg Config, logger *slog.Logger) *Clusterer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Clusterer{
		embeddings: embeddings,
		threshold:  cfg.Threshold,
		maxSize:    cfg.MaxClusterSize,
		logger:     logger,
	}
}

// Cluster partitions each department's questions into clusters. Every valid
// input question lands in exactly one cluster of its department; malformed
// questions are skipped with a logged warning and reported, never fatal.
//
// A department whose batch embedding fails is returned in failed and its
// questions stay pending for the next run; other departments proceed.
func (c *Clusterer) Cluster(ctx context.Context, byDept map[department.Department][]PendingQuestion) (clusters map[department.Department][]Cluster, skipped []Skipped, failed []department.Department, err error) {
	clusters = make(map[department.Department][]Cluster, len(byDept))

	for dept, questions := range byDept {
		valid := make([]PendingQuestion, 0, len(questions))
		for _, q := range questions {
			if reason := validate(q); reason != "" {
				c.logger.Warn("skipping malformed pending question",
					"id", q.ID, "department", dept, "reason", reason)
				skipped = append(skipped, Skipped{Question: q, Reason: reason})
				continue
			}
			valid = append(valid, q)
		}
		if len(valid) == 0 {
			continue
		}

		deptClusters, clusterErr := c.clusterDepartment(ctx, valid)
		if clusterErr != nil {
			c.logger.Warn("clustering failed for department, questions stay pending",
				"department", dept, "questions", len(valid), "error", clusterErr)
			failed = append(failed, dept)
			continue
		}
		clusters[dept] = deptClusters
	}

	if len(clusters) == 0 && len(failed) > 0 {
		return nil, skipped, failed, fmt.Errorf("clustering failed for all %d departments", len(failed))
	}
	return clusters, skipped, failed, nil
}

// clusterDepartment groups one department's questions: batch-embed, build
// the pairwise similarity graph, take connected components. Components are
// transitive on purpose: A~B and B~C merge all three even when A and C sit
// below the threshold, which captures paraphrase chains.
func (c *Clusterer) clusterDepartment(ctx context.Context, questions []PendingQuestion) ([]Cluster, error) {
	if len(questions) == 1 {
		return []Cluster{{questions[0]}}, nil
	}

	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}

	vectors, err := c.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d questions: %w", len(questions), err)
	}

	uf := newUnionFind(len(questions))
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			if embedding.Cosine(vectors[i], vectors[j]) >= c.threshold {
				uf.union(i, j)
			}
		}
	}

	// Group members by component root, preserving input order inside each
	// cluster and ordering clusters by their first member.
	roots := make(map[int]int)
	var order []int
	grouped := make([][]PendingQuestion, 0)
	for i, q := range questions {
		root := uf.find(i)
		idx, seen := roots[root]
		if !seen {
			idx = len(grouped)
			roots[root] = idx
			order = append(order, idx)
			grouped = append(grouped, nil)
		}
		grouped[idx] = append(grouped[idx], q)
	}

	clusters := make([]Cluster, 0, len(grouped))
	for _, idx := range order {
		clusters = append(clusters, c.splitOversized(Cluster(grouped[idx]))...)
	}
	return clusters, nil
}

// splitOversized breaks a component into MaxClusterSize pieces in input
// order. A single unbounded cluster would produce an unusable summary.
func (c *Clusterer) splitOversized(cluster Cluster) []Cluster {
	if c.maxSize <= 0 || len(cluster) <= c.maxSize {
		return []Cluster{cluster}
	}

	var parts []Cluster
	for start := 0; start < len(cluster); start += c.maxSize {
		end := min(start+c.maxSize, len(cluster))
		parts = append(parts, cluster[start:end])
	}
	c.logger.Debug("split oversized cluster", "size", len(cluster), "parts", len(parts))
	return parts
}

func validate(q PendingQuestion) string {
	if q.ID == uuid.Nil {
		return SkipReasonMissingID
	}
	if q.Text == "" {
		return SkipReasonMissingText
	}
	return ""
}

// unionFind is a standard disjoint-set with path compression and union by
// size, used for connected-component clustering.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
