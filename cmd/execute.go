// Package cmd implements the deskmate command line interface.
//
// All application logic lives here so main.go stays a minimal entry
// point. Commands are dispatched by name from os.Args; there are few
// enough of them that a full flag framework would be overkill.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/opsdesk/deskmate/internal/config"
	"github.com/opsdesk/deskmate/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the deskmate CLI.
//
// Version and help are handled before any initialization so they work
// even when the configuration is invalid or API keys are missing.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo(os.Stdout)
			return nil
		case "help", "--help", "-h":
			printHelp(os.Stdout)
			return nil
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	command := "ask"
	args := []string(nil)
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	// Migrations touch only the database, so they run without an API key.
	if command == "migrate" {
		return runMigrate(cfg)
	}

	if err := checkRequiredEnv(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	switch command {
	case "ask":
		return runAsk(ctx, cfg, args)
	case "dedupe":
		return runDedupe(ctx, cfg)
	case "ingest":
		return runIngest(ctx, cfg, args)
	default:
		printHelp(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// initLogger builds the process-wide logger. The DEBUG environment
// variable switches on debug level logging; output goes to stderr so
// stdout stays clean for answers and reports.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}

	return log.New(log.Config{Level: level})
}

// checkRequiredEnv verifies the API key for the configured provider is
// set before any component tries to use it.
func checkRequiredEnv(cfg *config.Config) error {
	var key string
	switch cfg.Provider {
	case config.ProviderGemini:
		key = "GEMINI_API_KEY"
	case config.ProviderOpenAI:
		key = "OPENAI_API_KEY"
	default:
		// Ollama runs locally and needs no key.
		return nil
	}

	if os.Getenv(key) == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable not set\n", key)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintf(os.Stderr, "The %q provider requires an API key:\n", cfg.Provider)
		fmt.Fprintf(os.Stderr, "  export %s=your-api-key\n", key)

		return fmt.Errorf("%s not set", key)
	}
	return nil
}

func printVersionInfo(w *os.File) {
	fmt.Fprintf(w, "deskmate v%s\n", AppVersion)
	fmt.Fprintf(w, "Build: %s\n", BuildTime)
	fmt.Fprintf(w, "Commit: %s\n", GitCommit)
}

func printHelp(w *os.File) {
	fmt.Fprintln(w, "deskmate - internal knowledge assistant")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  deskmate                  Start interactive question mode (default)")
	fmt.Fprintln(w, "  deskmate ask [question]   Answer a single question and exit")
	fmt.Fprintln(w, "  deskmate dedupe           Cluster and summarize pending questions")
	fmt.Fprintln(w, "  deskmate ingest <file>    Load knowledge chunks from a JSON file")
	fmt.Fprintln(w, "  deskmate migrate          Apply pending database migrations")
	fmt.Fprintln(w, "  deskmate version          Show version information")
	fmt.Fprintln(w, "  deskmate help             Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Interactive Commands:")
	fmt.Fprintln(w, "  /clear           Forget the current conversation")
	fmt.Fprintln(w, "  /exit, /quit     Exit deskmate")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  GEMINI_API_KEY   Required for the gemini provider")
	fmt.Fprintln(w, "  OPENAI_API_KEY   Required for the openai provider")
	fmt.Fprintln(w, "  DEBUG            Optional: enable debug logging")
}
