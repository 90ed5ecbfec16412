package cmd

import (
	"fmt"
	"os"

	"github.com/opsdesk/deskmate/db"
	"github.com/opsdesk/deskmate/internal/config"
)

// runMigrate applies pending database migrations and exits. Setup also
// migrates on startup; this command exists for operators who want to roll
// the schema forward without starting the application.
func runMigrate(cfg *config.Config) error {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(os.Stdout, "migrations applied")
	return nil
}
