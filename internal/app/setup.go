package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/opsdesk/deskmate/db"
	"github.com/opsdesk/deskmate/internal/config"
	"github.com/opsdesk/deskmate/internal/dedupe"
	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
	"github.com/opsdesk/deskmate/internal/history"
	"github.com/opsdesk/deskmate/internal/knowledge"
	"github.com/opsdesk/deskmate/internal/pipeline"
	"github.com/opsdesk/deskmate/internal/retrieval"
	"github.com/opsdesk/deskmate/internal/router"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	// The embedding service holds the model handle behind a lazy,
	// mutex-guarded provider: a model that is unreachable at startup does
	// not prevent the process from starting, it degrades routing and
	// retrieval until it comes up.
	a.Embeddings = embedding.NewService(func(context.Context) (ai.Embedder, error) {
		e := provideEmbedder(g, cfg)
		if e == nil {
			return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
		}
		return e, nil
	}, slog.Default())

	set, err := provideDepartments(cfg)
	if err != nil {
		return nil, err
	}
	a.Departments = set

	a.Router = router.New(set, a.Embeddings, router.Config{
		ConfidenceFloor: cfg.ConfidenceFloor,
		KeywordWeight:   cfg.KeywordWeight,
	}, slog.Default())

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), a.Embeddings, slog.Default())
	a.Retriever = retrieval.New(a.Knowledge, retrieval.Config{
		K:       cfg.RetrievalK,
		MaxDocs: cfg.RetrievalMaxDocs,
	}, slog.Default())

	a.History = history.NewManager(cfg.MaxTurns, slog.Default())
	a.Backlog = dedupe.NewStore(pool)

	completer := newCompleter(g, cfg)
	a.Pipeline = pipeline.New(cfg.Organization,
		a.Router, a.Retriever, a.History, completer, a.Backlog, slog.Default())

	clusterer := dedupe.NewClusterer(a.Embeddings, dedupe.Config{
		Threshold:      cfg.SimilarityThreshold,
		MaxClusterSize: cfg.MaxClusterSize,
	}, slog.Default())
	a.Dedupe = dedupe.NewRunner(a.Backlog, clusterer,
		dedupe.NewSummarizer(completer, slog.Default()), slog.Default())

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go purgeLoop(runCtx, a.History, time.Duration(cfg.HistoryTTLHours)*time.Hour)

	return a, nil
}

// purgeInterval is how often idle conversation state is swept.
const purgeInterval = time.Hour

// purgeLoop periodically evicts conversation state for idle users so memory
// stays bounded by the recently active population.
func purgeLoop(ctx context.Context, h *history.Manager, ttl time.Duration) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Purge(ttl)
		}
	}
}

// provideDepartments builds the immutable department set from configuration.
func provideDepartments(cfg *config.Config) (*department.Set, error) {
	profiles := make([]department.Profile, 0, len(cfg.Departments))
	for _, d := range cfg.Departments {
		profiles = append(profiles, department.Profile{
			Name:        department.Department(d.Name),
			Description: d.Description,
			Keywords:    d.Keywords,
		})
	}

	set, err := department.NewSet(profiles)
	if err != nil {
		return nil, fmt.Errorf("building department set: %w", err)
	}
	return set, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready when spans start.
// Tracing is disabled when no endpoint is configured.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// SAFETY: os.Setenv is not concurrent-safe, but this function is called
	// exactly once during startup in Setup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled", "endpoint", cfg.OTLPEndpoint, "service", cfg.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
