package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/embedding"
	"github.com/opsdesk/deskmate/internal/testutil"
)

// fakeBacklog serves a fixed pending set and records processed IDs.
type fakeBacklog struct {
	pending   map[department.Department][]PendingQuestion
	fetchErr  error
	markErr   error
	processed [][]uuid.UUID
}

func (f *fakeBacklog) PendingByDepartment(context.Context) (map[department.Department][]PendingQuestion, error) {
	return f.pending, f.fetchErr
}

func (f *fakeBacklog) MarkProcessed(_ context.Context, ids []uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.processed = append(f.processed, ids)
	return nil
}

// fakeCompleter returns a canned representative, optionally blocking until
// released.
type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, _ string) (string, error) {
	f.calls++
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func testRunner(backlog Backlog, completer Completer, mock *testutil.MockEmbedder) *Runner {
	service := embedding.NewService(nil, nil, embedding.WithEmbedder(mock))
	clusterer := NewClusterer(service, Config{Threshold: 0.4, MaxClusterSize: 25}, nil)
	return NewRunner(backlog, clusterer, NewSummarizer(completer, nil), nil)
}

func TestRunProcessesBacklog(t *testing.T) {
	a := pending("how do I reset my password")
	b := pending("password reset procedure")
	solo := pending("where is the cafeteria")

	mock := &testutil.MockEmbedder{
		Vectors: map[string][]float32{
			a.Text:    {1, 0},
			b.Text:    {0.9, 0.43},
			solo.Text: {0, 1},
		},
		Dimension: 2,
	}
	backlog := &fakeBacklog{pending: map[department.Department][]PendingQuestion{
		"IT":      {a, b},
		"General": {solo},
	}}
	completer := &fakeCompleter{reply: "How do I reset my password?"}

	report, err := testRunner(backlog, completer, mock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Questions)
	assert.Equal(t, 2, report.Clusters)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.LargestCluster)
	assert.InDelta(t, 1.0/3.0, report.DuplicateRatio(), 1e-9)
	assert.Equal(t, 1, completer.calls, "singletons must not invoke the model")
	assert.Len(t, backlog.processed, 2)

	var reps []string
	for _, s := range report.Summaries {
		reps = append(reps, s.Representative)
	}
	assert.Contains(t, reps, "How do I reset my password?")
	assert.Contains(t, reps, "where is the cafeteria", "singleton passes through verbatim")
}

func TestRunSummarizationFailureLeavesPending(t *testing.T) {
	a := pending("q one")
	b := pending("q two")

	mock := &testutil.MockEmbedder{
		Vectors: map[string][]float32{
			a.Text: {1, 0},
			b.Text: {1, 0},
		},
		Dimension: 2,
	}
	backlog := &fakeBacklog{pending: map[department.Department][]PendingQuestion{
		"HR": {a, b},
	}}
	completer := &fakeCompleter{err: errors.New("model offline")}

	report, err := testRunner(backlog, completer, mock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Clusters)
	assert.Zero(t, report.Processed, "unsummarized clusters must stay pending")
	assert.Empty(t, backlog.processed)
	assert.Empty(t, report.Summaries)
}

func TestRunMarkFailureSkipsSummary(t *testing.T) {
	a := pending("only question")
	backlog := &fakeBacklog{
		pending: map[department.Department][]PendingQuestion{"IT": {a}},
		markErr: errors.New("db down"),
	}
	completer := &fakeCompleter{}

	report, err := testRunner(backlog, completer, &testutil.MockEmbedder{Dimension: 2}).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Processed)
	assert.Empty(t, report.Summaries)
}

func TestRunEmptyBacklog(t *testing.T) {
	backlog := &fakeBacklog{}
	report, err := testRunner(backlog, &fakeCompleter{}, &testutil.MockEmbedder{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Questions)
}

func TestRunFetchFailure(t *testing.T) {
	backlog := &fakeBacklog{fetchErr: errors.New("db down")}
	_, err := testRunner(backlog, &fakeCompleter{}, &testutil.MockEmbedder{}).Run(context.Background())
	assert.Error(t, err)
}

func TestRunSingleFlight(t *testing.T) {
	a := pending("q one")
	b := pending("q two")
	mock := &testutil.MockEmbedder{
		Vectors: map[string][]float32{
			a.Text: {1, 0},
			b.Text: {1, 0},
		},
		Dimension: 2,
	}
	backlog := &fakeBacklog{pending: map[department.Department][]PendingQuestion{
		"IT": {a, b},
	}}
	completer := &fakeCompleter{
		reply:   "representative",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	runner := testRunner(backlog, completer, mock)

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background())
		done <- err
	}()

	// Wait until the first run is inside summarization, then race a second.
	<-completer.started
	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(completer.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}
}
