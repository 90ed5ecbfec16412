package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the PostgreSQL SSL modes accepted by pgx.
var validSSLModes = map[string]struct{}{
	"disable": {}, "allow": {}, "prefer": {},
	"require": {}, "verify-ca": {}, "verify-full": {},
}

// Validate checks the configuration for consistency.
// A validation failure here is fatal: the process must refuse to start
// rather than run with a broken classification or storage setup.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	case ProviderOllama:
		if strings.TrimSpace(c.OllamaHost) == "" {
			return fmt.Errorf("%w: ollama_host required when provider is ollama", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (expected gemini, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("model_name must not be empty")
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	if len(c.Departments) == 0 {
		return ErrNoDepartments
	}
	for i, d := range c.Departments {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: department %d has empty name", ErrNoDepartments, i)
		}
		if strings.TrimSpace(d.Description) == "" {
			return fmt.Errorf("department %q has no description (required for semantic routing)", d.Name)
		}
	}

	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("%w: confidence_floor %v outside [0, 1]", ErrInvalidThreshold, c.ConfidenceFloor)
	}
	if c.KeywordWeight < 0 {
		return fmt.Errorf("keyword_weight must be non-negative, got %v", c.KeywordWeight)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold %v outside [0, 1]", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.MaxClusterSize < 0 {
		return fmt.Errorf("max_cluster_size must be non-negative (0 disables the cap), got %d", c.MaxClusterSize)
	}

	if c.RetrievalK < 1 || c.RetrievalMaxDocs < 1 || c.RetrievalMaxDocs > c.RetrievalK {
		return fmt.Errorf("%w: k=%d max_docs=%d (need 1 <= max_docs <= k)",
			ErrInvalidRetrievalBounds, c.RetrievalK, c.RetrievalMaxDocs)
	}

	if c.MaxTurns < 1 {
		return fmt.Errorf("%w: max_turns must be at least 1, got %d", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if c.HistoryTTLHours < 1 {
		return fmt.Errorf("%w: history_ttl_hours must be at least 1, got %d", ErrInvalidTTL, c.HistoryTTLHours)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
