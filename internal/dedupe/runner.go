package dedupe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/opsdesk/deskmate/internal/department"
)

// ErrRunInProgress indicates another batch run holds the run lock.
// Two concurrent runs would double-process the same backlog, so the second
// caller backs off instead of queueing.
var ErrRunInProgress = errors.New("deduplication run already in progress")

// Summary is one clustered group ready for the admin review queue.
type Summary struct {
	Department     department.Department
	Representative string
	Size           int
	QuestionIDs    []uuid.UUID
}

// Report describes one completed batch run.
type Report struct {
	// Questions is the number of valid pending questions considered.
	Questions int

	// Clusters is the number of groups produced.
	Clusters int

	// Processed is the number of questions transitioned to processed.
	Processed int

	// LargestCluster is the size of the biggest group.
	LargestCluster int

	// Summaries holds one entry per successfully summarized cluster.
	Summaries []Summary

	// Skipped lists malformed questions excluded from the run.
	Skipped []Skipped

	// FailedDepartments lists departments whose batch could not be
	// clustered; their questions stay pending for the next run.
	FailedDepartments []department.Department
}

// DuplicateRatio is the share of questions that were duplicates of another
// question in the same run.
func (r *Report) DuplicateRatio() float64 {
	if r.Questions == 0 {
		return 0
	}
	return 1 - float64(r.Clusters)/float64(r.Questions)
}

// Runner orchestrates one deduplication pass: fetch the pending backlog,
// cluster it per department, summarize each cluster, and mark the originals
// processed.
//
// Runs are mutually exclusive; a second concurrent Run returns
// ErrRunInProgress immediately.
type Runner struct {
	backlog    Backlog
	clusterer  *Clusterer
	summarizer *Summarizer
	logger     *slog.Logger

	mu sync.Mutex
}

// NewRunner creates a Runner.
func NewRunner(backlog Backlog, clusterer *Clusterer, summarizer *Summarizer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		backlog:    backlog,
		clusterer:  clusterer,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Run executes one batch pass and reports what happened. A cluster whose
// summarization fails is left pending and retried on the next run; only
// clusters with a durable representative are marked processed.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	pending, err := r.backlog.PendingByDepartment(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching backlog: %w", err)
	}
	if len(pending) == 0 {
		r.logger.Info("deduplication run: backlog empty")
		return &Report{}, nil
	}

	clusters, skipped, failed, err := r.clusterer.Cluster(ctx, pending)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Skipped:           skipped,
		FailedDepartments: failed,
	}

	for dept, deptClusters := range clusters {
		for _, cluster := range deptClusters {
			report.Questions += len(cluster)
			report.Clusters++
			if len(cluster) > report.LargestCluster {
				report.LargestCluster = len(cluster)
			}

			rep, err := r.summarizer.Representative(ctx, cluster)
			if err != nil {
				r.logger.Warn("summarization failed, cluster stays pending",
					"department", dept, "size", len(cluster), "error", err)
				continue
			}

			ids := cluster.IDs()
			if err := r.backlog.MarkProcessed(ctx, ids); err != nil {
				r.logger.Error("failed to mark cluster processed",
					"department", dept, "size", len(cluster), "error", err)
				continue
			}

			report.Processed += len(ids)
			report.Summaries = append(report.Summaries, Summary{
				Department:     dept,
				Representative: rep,
				Size:           len(cluster),
				QuestionIDs:    ids,
			})
		}
	}

	r.logger.Info("deduplication run complete",
		"questions", report.Questions,
		"clusters", report.Clusters,
		"processed", report.Processed,
		"duplicate_ratio", fmt.Sprintf("%.2f", report.DuplicateRatio()),
		"skipped", len(report.Skipped))
	return report, nil
}
