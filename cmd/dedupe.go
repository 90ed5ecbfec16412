package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/opsdesk/deskmate/internal/app"
	"github.com/opsdesk/deskmate/internal/config"
	"github.com/opsdesk/deskmate/internal/dedupe"
)

// runDedupe executes one deduplication pass over the pending question
// backlog and prints the resulting report.
func runDedupe(ctx context.Context, cfg *config.Config) error {
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	report, err := a.Dedupe.Run(ctx)
	if err != nil {
		return fmt.Errorf("deduplication run failed: %w", err)
	}

	printReport(os.Stdout, report)
	return nil
}

func printReport(w *os.File, r *dedupe.Report) {
	if r.Questions == 0 {
		fmt.Fprintln(w, "no pending questions")
		return
	}

	fmt.Fprintf(w, "questions:        %d\n", r.Questions)
	fmt.Fprintf(w, "clusters:         %d\n", r.Clusters)
	fmt.Fprintf(w, "processed:        %d\n", r.Processed)
	fmt.Fprintf(w, "largest cluster:  %d\n", r.LargestCluster)
	fmt.Fprintf(w, "duplicate ratio:  %.2f\n", r.DuplicateRatio())

	if len(r.Summaries) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "representative questions:")
		for _, s := range r.Summaries {
			fmt.Fprintf(w, "  [%s] (%d) %s\n", s.Department, s.Size, s.Representative)
		}
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "\nskipped %d malformed question(s)\n", len(r.Skipped))
	}
	for _, dept := range r.FailedDepartments {
		fmt.Fprintf(w, "department %s failed and will be retried next run\n", dept)
	}
}
