package dedupe

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCompleter struct {
	reply string
	err   error
	calls int
	last  string
}

func (c *staticCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.calls++
	c.last = prompt
	return c.reply, c.err
}

func question(text string) PendingQuestion {
	return PendingQuestion{ID: uuid.New(), Text: text}
}

func TestRepresentativeSingletonSkipsModel(t *testing.T) {
	completer := &staticCompleter{reply: "unused"}
	s := NewSummarizer(completer, nil)

	rep, err := s.Representative(context.Background(), Cluster{question("How do I reset my VPN password?")})
	require.NoError(t, err)

	assert.Equal(t, "How do I reset my VPN password?", rep)
	assert.Equal(t, 0, completer.calls, "singletons must not cost a completion call")
}

func TestRepresentativeMergesCluster(t *testing.T) {
	completer := &staticCompleter{reply: "  How does the referral bonus work?\n"}
	s := NewSummarizer(completer, nil)

	cluster := Cluster{
		question("what's the referral bonus"),
		question("how much do I get for referring someone"),
		question("referral bonus amount?"),
	}

	rep, err := s.Representative(context.Background(), cluster)
	require.NoError(t, err)

	assert.Equal(t, "How does the referral bonus work?", rep, "reply must be trimmed")
	assert.Equal(t, 1, completer.calls)
	assert.Contains(t, completer.last, "1. what's the referral bonus")
	assert.Contains(t, completer.last, "3. referral bonus amount?")
	assert.Contains(t, completer.last, "Reply with the question only")
}

func TestRepresentativeFailures(t *testing.T) {
	t.Run("empty cluster", func(t *testing.T) {
		s := NewSummarizer(&staticCompleter{}, nil)
		_, err := s.Representative(context.Background(), Cluster{})
		assert.Error(t, err)
	})

	t.Run("model error", func(t *testing.T) {
		s := NewSummarizer(&staticCompleter{err: errors.New("rate limited")}, nil)
		_, err := s.Representative(context.Background(), Cluster{question("a"), question("b")})
		assert.ErrorContains(t, err, "rate limited")
	})

	t.Run("blank reply", func(t *testing.T) {
		s := NewSummarizer(&staticCompleter{reply: "   \n"}, nil)
		_, err := s.Representative(context.Background(), Cluster{question("a"), question("b")})
		assert.Error(t, err)
	})
}
