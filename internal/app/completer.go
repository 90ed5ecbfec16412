package app

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/opsdesk/deskmate/internal/config"
)

// completer adapts genkit.Generate to the single-method Completer interface
// consumed by the pipeline and the dedupe summarizer.
type completer struct {
	g         *genkit.Genkit
	modelName string
}

func newCompleter(g *genkit.Genkit, cfg *config.Config) *completer {
	return &completer{
		g:         g,
		modelName: qualifiedModelName(cfg),
	}
}

// qualifiedModelName prefixes the configured model with its provider
// namespace as registered in Genkit's model registry.
func qualifiedModelName(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderOllama:
		return "ollama/" + cfg.ModelName
	case config.ProviderOpenAI:
		return "openai/" + cfg.ModelName
	default: // gemini
		return "googleai/" + cfg.ModelName
	}
}

// Complete implements pipeline.Completer and dedupe.Completer.
func (c *completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return resp.Text(), nil
}
