package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Completer produces a text completion for a prompt. Rate limiting and
// retries are owned by the implementation, not this package.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer collapses a cluster of near-duplicate questions into one
// representative question for the admin review queue.
type Summarizer struct {
	complete Completer
	logger   *slog.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(complete Completer, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Summarizer{
		complete: complete,
		logger:   logger,
	}
}

// Representative returns the question that stands for the whole cluster.
// Singletons pass through verbatim without a model call.
func (s *Summarizer) Representative(ctx context.Context, cluster Cluster) (string, error) {
	if len(cluster) == 0 {
		return "", fmt.Errorf("empty cluster")
	}
	if len(cluster) == 1 {
		return cluster[0].Text, nil
	}

	text, err := s.complete.Complete(ctx, clusterPrompt(cluster))
	if err != nil {
		return "", fmt.Errorf("summarizing cluster of %d: %w", len(cluster), err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("model returned empty representative for cluster of %d", len(cluster))
	}
	return text, nil
}

func clusterPrompt(cluster Cluster) string {
	var b strings.Builder
	b.WriteString("The following user questions all ask about the same topic:\n\n")
	for i, q := range cluster {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Text)
	}
	b.WriteString("\nWrite a single clear question that best represents all of them. ")
	b.WriteString("Reply with the question only, no explanation.")
	return b.String()
}
