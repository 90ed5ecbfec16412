// Package pipeline wires the request path end to end: route the query to a
// department, retrieve evidence, fold in conversation history, ask the
// model, and update history with the parsed answer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opsdesk/deskmate/internal/dedupe"
	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/history"
	"github.com/opsdesk/deskmate/internal/knowledge"
	"github.com/opsdesk/deskmate/internal/retrieval"
	"github.com/opsdesk/deskmate/internal/router"
)

// historyTurns is how many recent turns are folded into the prompt.
const historyTurns = 5

// minRecordableQuestion filters trivially short standalone questions from
// the unanswered queue; greetings and confirmations are not worth an admin's
// review.
const minRecordableQuestion = 20

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Recorder queues questions the model could not answer from the knowledge
// base, and routing disagreements between the keyword router and the model.
type Recorder interface {
	Add(ctx context.Context, q dedupe.UnansweredQuestion) error
	AddRoutingFailure(ctx context.Context, f dedupe.RoutingFailure) error
}

// Answer is the structured model response surfaced to callers.
type Answer struct {
	OrgRelated  bool   `json:"org_related"`
	HasContext  bool   `json:"has_context"`
	Answer      string `json:"answer"`
	Department  string `json:"dept"`
	Followup    string `json:"followup"`
	StdQuestion string `json:"std_question"`

	// Routing is the router's decision for this query, attached for
	// diagnostics; it is not part of the model output.
	Routing router.Decision `json:"-"`
}

// Pipeline executes the request path. It is stateless apart from its
// collaborators and safe for concurrent use.
type Pipeline struct {
	organization string
	router       *router.Router
	retriever    *retrieval.Retriever
	history      *history.Manager
	complete     Completer
	recorder     Recorder
	logger       *slog.Logger
}

// New creates a Pipeline.
//
// Parameters:
//   - organization: Organization name interpolated into prompts
//   - r: Department router
//   - ret: Evidence retriever
//   - hist: Per-user conversation state
//   - complete: Text-completion collaborator
//   - recorder: Unanswered-question queue (nil disables recording)
//   - logger: Logger (nil = slog.Default())
func New(organization string, r *router.Router, ret *retrieval.Retriever, hist *history.Manager, complete Completer, recorder Recorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		organization: organization,
		router:       r,
		retriever:    ret,
		history:      hist,
		complete:     complete,
		recorder:     recorder,
		logger:       logger,
	}
}

// Ask answers one user query. Routing and retrieval degrade rather than
// fail; only the completion call and response parsing can return an error.
func (p *Pipeline) Ask(ctx context.Context, user uuid.UUID, query string) (*Answer, error) {
	decision := p.router.Route(ctx, query)
	p.logger.Debug("routed query",
		"department", decision.Department,
		"method", decision.Method,
		"confidence", decision.Confidence)

	passages := p.retriever.Retrieve(ctx, query, decision.Department)
	evidence := joinPassages(passages)

	turns := p.history.Context(user, historyTurns)
	prompt := buildPrompt(promptInput{
		Organization: p.organization,
		Query:        query,
		Department:   decision.Department,
		Evidence:     evidence,
		History:      turns,
		LastContext:  p.history.LastContext(user),
		LastFollowup: p.history.LastFollowup(user),
	})

	raw, err := p.complete.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completing answer: %w", err)
	}

	answer, err := ParseAnswer(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}
	answer.Routing = decision

	p.history.Update(user, query, answer.Answer, answer.Followup, evidence)
	p.maybeRecord(ctx, user, answer, evidence)

	return answer, nil
}

// maybeRecord queues follow-up work for admin review: the standalone
// question when the model answered without usable context, and a routing
// failure when the model's department disagrees with the router's. Failures
// are logged, never surfaced: the user already has their answer.
func (p *Pipeline) maybeRecord(ctx context.Context, user uuid.UUID, a *Answer, evidence string) {
	if p.recorder == nil || len(a.StdQuestion) <= minRecordableQuestion {
		return
	}

	if a.Department != "" && a.Department != a.Routing.Department.String() {
		err := p.recorder.AddRoutingFailure(ctx, dedupe.RoutingFailure{
			Query:    a.StdQuestion,
			Detected: a.Routing.Department,
			Expected: department.Department(a.Department),
		})
		if err != nil {
			p.logger.Error("failed to queue routing failure", "error", err)
		} else {
			p.logger.Debug("queued routing failure",
				"detected", a.Routing.Department, "expected", a.Department)
		}
	}

	if a.HasContext {
		return
	}

	err := p.recorder.Add(ctx, dedupe.UnansweredQuestion{
		UserID:     user,
		Query:      a.StdQuestion,
		Answer:     a.Answer,
		Context:    evidence,
		Department: department.Department(a.Department),
	})
	if err != nil {
		p.logger.Error("failed to queue unanswered question", "error", err)
		return
	}
	p.logger.Debug("queued unanswered question", "question", a.StdQuestion)
}

func joinPassages(passages []knowledge.Result) string {
	if len(passages) == 0 {
		return ""
	}

	parts := make([]string, len(passages))
	for i, r := range passages {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, ", ")
}
