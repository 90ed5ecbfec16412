// Package retrieval selects a small, confidence-ranked set of evidence
// passages for a routed query.
//
// Retrieval is deliberately more forgiving than a single hard cutoff. A
// tight distance band keeps precision high, an escalation path recovers from
// misrouted department filters, and a result floor guarantees minimum
// evidence whenever anything plausible exists. Retrieval never fails: an
// unreachable model or index yields an empty result, which callers treat as
// "no context available".
package retrieval

import (
	"context"
	"log/slog"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/knowledge"
)

// Searcher is the slice of the knowledge store the retriever consumes.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Config holds retrieval tunables.
type Config struct {
	// K is the number of nearest neighbors fetched per search.
	K int

	// MaxDocs caps the number of passages returned.
	MaxDocs int
}

// Retriever performs banded k-NN retrieval against the knowledge store.
// It is stateless and safe for concurrent use.
type Retriever struct {
	store   Searcher
	k       int
	maxDocs int
	logger  *slog.Logger
}

// New creates a Retriever.
//
// Parameters:
//   - store: Knowledge store search surface
//   - cfg: Neighbor count and result cap
//   - logger: Logger for degradation warnings (nil = slog.Default())
func New(store Searcher, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}

	return &Retriever{
		store:   store,
		k:       cfg.K,
		maxDocs: cfg.MaxDocs,
		logger:  logger,
	}
}

// Retrieve returns evidence passages for the query, ascending by distance.
//
// The search is scoped to dept unless dept is General. When the scoped
// candidate set contains nothing within EscalationDistance the filter is
// presumed wrong and the search re-runs unfiltered. The result is then
// sized by the band rule: hits inside PrimaryBandDistance capped at
// MaxDocs, backfilled from the ranked candidates when the band alone is
// too thin.
//
// Failures are absorbed: an empty slice means "no context available",
// never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, dept department.Department) []knowledge.Result {
	filtered := !dept.IsGeneral()

	candidates, err := r.search(ctx, query, dept)
	if err != nil {
		r.logger.Warn("retrieval unavailable, continuing without context",
			"department", dept, "error", err)
		return nil
	}

	// Escalation: a scoped search with nothing even plausible suggests the
	// query was misrouted, not that the corpus is silent. Widen the search
	// before giving up.
	if filtered && !anyWithin(candidates, EscalationDistance) {
		r.logger.Debug("escalating to unfiltered search", "department", dept)
		candidates, err = r.search(ctx, query, department.General)
		if err != nil {
			r.logger.Warn("escalated retrieval unavailable, continuing without context",
				"error", err)
			return nil
		}
	}

	return sizeResults(candidates, r.maxDocs)
}

func (r *Retriever) search(ctx context.Context, query string, dept department.Department) ([]knowledge.Result, error) {
	return r.store.Search(ctx, query,
		knowledge.WithTopK(r.k),
		knowledge.WithDepartment(dept))
}

// sizeResults applies the band rule to an ascending candidate list.
func sizeResults(candidates []knowledge.Result, maxDocs int) []knowledge.Result {
	band := 0
	for _, c := range candidates {
		if c.Distance >= PrimaryBandDistance {
			break
		}
		band++
	}

	n := band
	if n < MinResults {
		// Thin band: backfill from the ranked list up to
		// max(MinResults, min(available, maxDocs)), so callers get the
		// full cap's worth of evidence when the corpus has it and at
		// least the floor when anything plausible exists.
		n = max(MinResults, min(len(candidates), maxDocs))
		n = min(n, len(candidates))
	} else if n > maxDocs {
		n = maxDocs
	}

	if n == 0 {
		return nil
	}
	return candidates[:n]
}

func anyWithin(results []knowledge.Result, distance float64) bool {
	for _, r := range results {
		if r.Distance < distance {
			return true
		}
	}
	return false
}
