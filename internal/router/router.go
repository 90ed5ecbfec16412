// Package router classifies free-text queries into departments.
//
// Routing is a two-stage decision. A cheap keyword stage scores each
// department's lexicon against the query; if no department shows any keyword
// signal the query is clearly off-topic and routing short-circuits to the
// General fallback without an embedding call. Otherwise a semantic stage
// embeds the query, compares it against each department's precomputed
// description embedding, and blends both signals:
//
//	combined = cosine(query, description) + keywordWeight * keywordScore
//
// The best combined score wins; winners below the confidence floor fall
// back to General so that low-confidence keyword noise never mis-routes.
//
// Routing never fails: if the embedding model is unavailable the router
// degrades to keyword-only scoring and reports reduced confidence.
//
// Router is stateless apart from the immutable department set and the
// lazily-initialized description embeddings; it is safe for concurrent use.
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
)

// Routing method identifiers reported in Decision.Method.
const (
	// MethodKeyword: decided by the keyword fast path, no embedding call.
	MethodKeyword = "keyword"

	// MethodCombined: decided by the blended keyword+semantic score.
	MethodCombined = "combined"

	// MethodDegraded: embedding model unavailable, keyword-only scoring.
	MethodDegraded = "degraded"

	// MethodFallback: no signal or below the confidence floor.
	MethodFallback = "fallback"
)

// exactMatchScore is the keyword score contributed by one exact
// word-boundary match; decisiveLead (see Route) derives from it.
const exactMatchScore = 2.0

// ngramMatchScore is the keyword score contributed by one matched
// multi-word n-gram.
const ngramMatchScore = 0.5

// Decision is the outcome of routing one query.
type Decision struct {
	Department department.Department
	Method     string
	Confidence float64
}

// Config holds router tunables.
type Config struct {
	// ConfidenceFloor is the minimum winning combined score; below it the
	// router returns General.
	ConfidenceFloor float64

	// KeywordWeight scales the keyword score in the blended decision.
	KeywordWeight float64
}

// Router routes queries to departments.
type Router struct {
	set      *department.Set
	service  *embedding.Service
	floor    float64
	weight   float64
	lexicons []lexicon
	logger   *slog.Logger

	// Description embeddings, computed once on first semantic routing and
	// immutable afterwards. Guarded by mu for the initialize-once step.
	mu          sync.Mutex
	deptVectors map[department.Department][]float32
}

// New creates a Router for the given department set.
//
// Parameters:
//   - set: Immutable department enumeration with lexicons and descriptions
//   - service: Shared embedding service (semantic stage)
//   - cfg: Confidence floor and keyword weight
//   - logger: Logger for degradation warnings (nil = slog.Default())
func New(set *department.Set, service *embedding.Service, cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	lexicons := make([]lexicon, 0, set.Len())
	for _, p := range set.Profiles() {
		lexicons = append(lexicons, newLexicon(p.Name, p.Keywords))
	}

	return &Router{
		set:      set,
		service:  service,
		floor:    cfg.ConfidenceFloor,
		weight:   cfg.KeywordWeight,
		lexicons: lexicons,
		logger:   logger,
	}
}

// Route classifies a query. It always returns a valid department: either a
// configured one or the General fallback, never an error.
func (r *Router) Route(ctx context.Context, query string) Decision {
	scores := r.keywordScores(query)

	var total float64
	for _, s := range scores {
		total += s.score
	}

	// No keyword signal anywhere: clearly off-topic, skip the embedding
	// call entirely.
	if total == 0 {
		return Decision{Department: department.General, Method: MethodFallback, Confidence: 0}
	}

	best, runnerUp := topTwo(scores)

	// Keyword fast path: a unique lead of at least one full exact match
	// cannot be overturned by the semantic stage (cosine similarities
	// differ by at most 2, and 2 < keywordWeight * exactMatchScore for any
	// weight above 1), so the embedding call is pure cost.
	if r.weight*exactMatchScore > 2 && best.score-runnerUp >= exactMatchScore {
		return Decision{
			Department: best.dept,
			Method:     MethodKeyword,
			Confidence: r.weight * best.score,
		}
	}

	queryVec, vectors, err := r.semanticInputs(ctx, query)
	if err != nil {
		// Embedding model unavailable: degrade to keyword-only scoring with
		// reduced confidence. Never surface the failure to the caller.
		r.logger.Warn("semantic routing unavailable, using keyword-only scores", "error", err)
		confidence := r.weight * best.score
		if confidence < r.floor {
			return Decision{Department: department.General, Method: MethodFallback, Confidence: confidence}
		}
		return Decision{Department: best.dept, Method: MethodDegraded, Confidence: confidence}
	}

	var winner Decision
	for i, s := range scores {
		combined := embedding.Cosine(queryVec, vectors[s.dept]) + r.weight*s.score
		if i == 0 || combined > winner.Confidence {
			winner = Decision{Department: s.dept, Method: MethodCombined, Confidence: combined}
		}
	}

	// Adaptive threshold: a low-confidence winner is noise, not a routing.
	if winner.Confidence < r.floor {
		return Decision{Department: department.General, Method: MethodFallback, Confidence: winner.Confidence}
	}
	return winner
}

// semanticInputs embeds the query and returns it together with the
// description embeddings, computing the latter once on first use.
func (r *Router) semanticInputs(ctx context.Context, query string) ([]float32, map[department.Department][]float32, error) {
	vectors, err := r.descriptionVectors(ctx)
	if err != nil {
		return nil, nil, err
	}

	queryVec, err := r.service.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	return queryVec, vectors, nil
}

// descriptionVectors returns the per-department description embeddings,
// computing them exactly once. A failed computation is retried on the next
// call rather than cached, so an embedder that comes up late still works.
func (r *Router) descriptionVectors(ctx context.Context) (map[department.Department][]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deptVectors != nil {
		return r.deptVectors, nil
	}

	profiles := r.set.Profiles()
	texts := make([]string, len(profiles))
	for i, p := range profiles {
		texts[i] = p.Description
	}

	embedded, err := r.service.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	vectors := make(map[department.Department][]float32, len(profiles))
	for i, p := range profiles {
		vectors[p.Name] = embedded[i]
	}
	r.deptVectors = vectors
	r.logger.Debug("department description embeddings computed", "departments", len(vectors))
	return vectors, nil
}

// topTwo returns the highest-scoring entry and the runner-up score.
func topTwo(scores []deptScore) (best deptScore, runnerUp float64) {
	for _, s := range scores {
		switch {
		case s.score > best.score || best.dept == "":
			runnerUp = best.score
			best = s
		case s.score > runnerUp:
			runnerUp = s.score
		}
	}
	return best, runnerUp
}
