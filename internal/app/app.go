// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: the Genkit
// instance, the database pool, the embedding service, and the assembled
// request pipeline and batch runner. Construct it with Setup and release it
// with Close.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

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

// App is the core application container.
type App struct {
	// Configuration
	Config *config.Config

	// Core services
	Genkit     *genkit.Genkit
	Embeddings *embedding.Service
	DBPool     *pgxpool.Pool

	// Domain components
	Departments *department.Set
	Router      *router.Router
	Retriever   *retrieval.Retriever
	History     *history.Manager
	Knowledge   *knowledge.Store
	Backlog     *dedupe.Store

	// Assembled surfaces
	Pipeline *pipeline.Pipeline
	Dedupe   *dedupe.Runner

	// Lifecycle management
	otelCleanup func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		slog.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
