// Package dedupe groups near-duplicate pending questions per department so
// an admin review queue sees one representative entry instead of a flood of
// paraphrases.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdesk/deskmate/internal/department"
)

// Question statuses in the user_questions table.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
)

// PendingQuestion is one unanswered question read from the backlog.
type PendingQuestion struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Text       string
	Department department.Department
	CreatedAt  time.Time
}

// Backlog is the slice of the relational store the batch run consumes.
type Backlog interface {
	// PendingByDepartment returns all pending questions grouped by
	// department, oldest first within each group
	PendingByDepartment(ctx context.Context) (map[department.Department][]PendingQuestion, error)

	// MarkProcessed transitions the given questions to processed
	MarkProcessed(ctx context.Context, ids []uuid.UUID) error
}

// DB is the subset of pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements Backlog against the user_questions table.
type Store struct {
	db DB
}

// NewStore creates a Store bound to the given connection pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const pendingSQL = `
SELECT id, userid, query, COALESCE(dept, ''), createdat
FROM user_questions
WHERE status = 'pending'
ORDER BY createdat
`

// PendingByDepartment implements Backlog. Questions with no department tag
// are grouped under General.
func (s *Store) PendingByDepartment(ctx context.Context) (map[department.Department][]PendingQuestion, error) {
	rows, err := s.db.Query(ctx, pendingSQL)
	if err != nil {
		return nil, fmt.Errorf("querying pending questions: %w", err)
	}
	defer rows.Close()

	grouped := make(map[department.Department][]PendingQuestion)
	for rows.Next() {
		var q PendingQuestion
		var dept string
		if err := rows.Scan(&q.ID, &q.UserID, &q.Text, &dept, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending question: %w", err)
		}
		if dept == "" {
			q.Department = department.General
		} else {
			q.Department = department.Department(dept)
		}
		grouped[q.Department] = append(grouped[q.Department], q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grouped, nil
}

// UnansweredQuestion is a question the assistant could not answer from the
// knowledge base, queued for admin review.
type UnansweredQuestion struct {
	UserID     uuid.UUID
	Query      string
	Answer     string
	Context    string
	Department department.Department
}

// Add queues an unanswered question as pending. A General or empty
// department is stored as NULL.
func (s *Store) Add(ctx context.Context, q UnansweredQuestion) error {
	dept := q.Department.String()
	if q.Department.IsGeneral() {
		dept = ""
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_questions (userid, query, answer, context, status, dept)
		VALUES ($1, $2, $3, $4, 'pending', NULLIF($5, ''))`,
		q.UserID, q.Query, q.Answer, q.Context, dept)
	if err != nil {
		return fmt.Errorf("queueing unanswered question: %w", err)
	}
	return nil
}

// RoutingFailure records a disagreement between the keyword router and the
// model over which department a question belongs to.
type RoutingFailure struct {
	Query    string
	Detected department.Department
	Expected department.Department
}

// AddRoutingFailure queues a routing disagreement as pending for admin review
// of the department lexicons.
func (s *Store) AddRoutingFailure(ctx context.Context, f RoutingFailure) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO dept_failures (query, detected, expected, status)
		VALUES ($1, $2, $3, 'pending')`,
		f.Query, f.Detected.String(), f.Expected.String())
	if err != nil {
		return fmt.Errorf("queueing routing failure: %w", err)
	}
	return nil
}

// MarkProcessed implements Backlog.
func (s *Store) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE user_questions SET status = 'processed' WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("marking %d questions processed: %w", len(ids), err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("marked %d of %d questions processed", tag.RowsAffected(), len(ids))
	}
	return nil
}
