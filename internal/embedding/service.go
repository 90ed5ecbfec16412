// Package embedding provides the shared embedding service used by the
// router, retriever, and clusterer.
//
// The service replaces the usual lazily-loaded global model singleton with an
// explicitly constructed, dependency-injected object: the model handle is
// still initialized lazily (first use) and exactly once on success, but the
// handle lives behind a mutex-guarded accessor inside the Service, which is
// built at process start and passed to components by reference.
//
// Service is safe for concurrent use by multiple goroutines.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

// ErrUnavailable indicates the embedding model could not be reached or
// initialized. Callers that can degrade (keyword-only routing, empty
// retrieval) should check for it with errors.Is and continue.
var ErrUnavailable = errors.New("embedding model unavailable")

// ProviderFunc builds the underlying embedder on first use.
// It is called at most until it first succeeds; afterwards the returned
// handle is reused for the process lifetime.
type ProviderFunc func(ctx context.Context) (ai.Embedder, error)

// Service wraps an ai.Embedder with lazy initialization and proactive
// rate limiting for batch-heavy callers.
type Service struct {
	mu       sync.Mutex
	provide  ProviderFunc
	embedder ai.Embedder // non-nil once initialization succeeded

	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRateLimiter sets a proactive rate limiter applied to every embedding
// request. Default: 10 requests/sec sustained, burst of 30.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithEmbedder injects an already-initialized embedder, skipping lazy
// initialization. Used in tests and by callers that construct the embedder
// during startup anyway.
func WithEmbedder(e ai.Embedder) Option {
	return func(s *Service) { s.embedder = e }
}

// NewService creates an embedding service.
//
// Parameters:
//   - provide: Factory for the underlying embedder (nil is allowed when
//     WithEmbedder is used; otherwise every call degrades with ErrUnavailable)
//   - logger: Logger for degradation warnings (nil = slog.Default())
func NewService(provide ProviderFunc, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		provide: provide,
		limiter: rate.NewLimiter(10, 30),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// handle returns the underlying embedder, initializing it on first use.
// Initialization failures are not cached: a later call retries, so a model
// that comes up after startup becomes usable without a restart.
func (s *Service) handle(ctx context.Context) (ai.Embedder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embedder != nil {
		return s.embedder, nil
	}
	if s.provide == nil {
		return nil, ErrUnavailable
	}

	e, err := s.provide(ctx)
	if err != nil {
		s.logger.Warn("embedding model initialization failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.embedder = e
	s.logger.Debug("embedding model initialized", "embedder", e.Name())
	return e, nil
}

// Available reports whether the embedding model can currently be used.
// It triggers lazy initialization if that has not happened yet, so a true
// result means subsequent Embed calls will not fail on initialization.
func (s *Service) Available(ctx context.Context) bool {
	_, err := s.handle(ctx)
	return err == nil
}

// Embed returns the embedding vector for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding vector per input text, in input order.
// All texts are sent in a single request to the model.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embedder, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
		}
	}

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned for text %d", i)
		}
		vectors[i] = e.Embedding
	}
	return vectors, nil
}
