// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.deskmate/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: Embedding provider and model selection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Departments: the classification enumeration with lexicons and
//     descriptions (see departments.go) — static input data, never computed
//   - Routing/Retrieval/History/Dedupe: component tunables
//
// Security: Sensitive data (passwords) are never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Configuration errors are fatal at startup: Load validates and fails
//     fast rather than letting the process run degraded.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrNoDepartments indicates that no departments are configured.
	ErrNoDepartments = errors.New("no departments configured")

	// ErrInvalidThreshold indicates a similarity threshold is out of [0, 1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMaxTurns indicates the history turn capacity is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidTTL indicates the history TTL is out of range.
	ErrInvalidTTL = errors.New("invalid history TTL")

	// ErrInvalidRetrievalBounds indicates retrieval k/max_docs are inconsistent.
	ErrInvalidRetrievalBounds = errors.New("invalid retrieval bounds")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	// DefaultModelName is the default completion model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; our pgvector schema uses 768 dimensions.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultConfidenceFloor is the minimum combined routing score; winners
	// below it fall back to General.
	DefaultConfidenceFloor = 0.30

	// DefaultKeywordWeight scales the keyword score when blended with
	// semantic similarity: combined = semantic + weight * keyword.
	DefaultKeywordWeight = 1.5

	// DefaultRetrievalK is the nearest-neighbor candidate count per search.
	DefaultRetrievalK = 10

	// DefaultRetrievalMaxDocs caps the evidence passages returned per query.
	DefaultRetrievalMaxDocs = 5

	// DefaultMaxTurns bounds the per-user conversation buffer.
	DefaultMaxTurns = 10

	// DefaultHistoryTTLHours is the idle time after which a user's
	// conversation state is purged.
	DefaultHistoryTTLHours = 48

	// DefaultSimilarityThreshold is the clustering edge threshold.
	DefaultSimilarityThreshold = 0.4

	// DefaultMaxClusterSize caps transitive clusters; oversized connected
	// components are split. 0 disables the cap.
	DefaultMaxClusterSize = 25
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider configuration
	Provider      string `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"` // Only used when provider is "ollama"

	// Organization name used in prompt assembly.
	Organization string `mapstructure:"organization" json:"organization"`

	// Department enumeration with lexicons and descriptions (static input).
	Departments []DepartmentProfile `mapstructure:"departments" json:"departments"`

	// Routing tunables
	ConfidenceFloor float64 `mapstructure:"confidence_floor" json:"confidence_floor"`
	KeywordWeight   float64 `mapstructure:"keyword_weight" json:"keyword_weight"`

	// Retrieval tunables
	RetrievalK       int `mapstructure:"retrieval_k" json:"retrieval_k"`
	RetrievalMaxDocs int `mapstructure:"retrieval_max_docs" json:"retrieval_max_docs"`

	// Conversation history tunables
	MaxTurns        int `mapstructure:"max_turns" json:"max_turns"`
	HistoryTTLHours int `mapstructure:"history_ttl_hours" json:"history_ttl_hours"`

	// Dedupe/clustering tunables
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	MaxClusterSize      int     `mapstructure:"max_cluster_size" json:"max_cluster_size"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability: OTLP trace endpoint (empty = tracing disabled)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
}

// DepartmentProfile mirrors one configured department.
// Kept as a plain config struct; internal/department builds the validated
// immutable Set from these at startup.
type DepartmentProfile struct {
	Name        string   `mapstructure:"name" json:"name"`
	Description string   `mapstructure:"description" json:"description"`
	Keywords    []string `mapstructure:"keywords" json:"keywords"`
}

// MarshalJSON masks sensitive fields when the config is serialized for
// logging or diagnostics.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // Avoid recursion
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "********"
	}
	return json.Marshal(masked)
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.deskmate/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".deskmate")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Config files that don't mention departments get the built-in set.
	if len(cfg.Departments) == 0 {
		cfg.Departments = DefaultDepartments()
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("organization", "Deskmate")

	// Routing defaults
	v.SetDefault("confidence_floor", DefaultConfidenceFloor)
	v.SetDefault("keyword_weight", DefaultKeywordWeight)

	// Retrieval defaults
	v.SetDefault("retrieval_k", DefaultRetrievalK)
	v.SetDefault("retrieval_max_docs", DefaultRetrievalMaxDocs)

	// History defaults
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("history_ttl_hours", DefaultHistoryTTLHours)

	// Dedupe defaults
	v.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("max_cluster_size", DefaultMaxClusterSize)

	// Storage defaults
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "deskmate")
	v.SetDefault("postgres_password", "deskmate_dev_password")
	v.SetDefault("postgres_db_name", "deskmate")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Observability defaults (tracing off unless an endpoint is configured)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "deskmate")
}

// bindEnvVariables binds environment variables for runtime overrides.
// Environment names use the DESKMATE_ prefix, e.g. DESKMATE_POSTGRES_HOST.
func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("DESKMATE")
	v.AutomaticEnv()

	keys := []string{
		"provider", "model_name", "embedder_model", "ollama_host", "organization",
		"confidence_floor", "keyword_weight",
		"retrieval_k", "retrieval_max_docs",
		"max_turns", "history_ttl_hours",
		"similarity_threshold", "max_cluster_size",
		"postgres_host", "postgres_port", "postgres_user",
		"postgres_password", "postgres_db_name", "postgres_ssl_mode",
		"otlp_endpoint", "service_name",
	}
	for _, key := range keys {
		// BindEnv only fails for an empty key list
		_ = v.BindEnv(key)
	}
}
