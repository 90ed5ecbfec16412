package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func questions(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Question
	}
	return out
}

func TestUpdateEvictsFIFO(t *testing.T) {
	m := NewManager(3, nil)
	user := uuid.New()

	for i := 1; i <= 5; i++ {
		q := fmt.Sprintf("Q%d", i)
		m.Update(user, q, "A"+q[1:], "", "")
	}

	got := m.Context(user, 10)
	assert.Equal(t, []string{"Q3", "Q4", "Q5"}, questions(got))
}

func TestContextReturnsMostRecentK(t *testing.T) {
	m := NewManager(5, nil)
	user := uuid.New()

	m.Update(user, "Q1", "A1", "", "")
	m.Update(user, "Q2", "A2", "", "")
	m.Update(user, "Q3", "A3", "", "")

	assert.Equal(t, []string{"Q2", "Q3"}, questions(m.Context(user, 2)))
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, questions(m.Context(user, 99)))
	assert.Nil(t, m.Context(user, 0))
	assert.Nil(t, m.Context(uuid.New(), 3), "unknown user has no context")
}

func TestLastContextAndFollowupOverwrite(t *testing.T) {
	m := NewManager(5, nil)
	user := uuid.New()

	m.Update(user, "Q1", "A1", "anything else?", "ctx-1")
	m.Update(user, "Q2", "A2", "need the form?", "ctx-2")

	assert.Equal(t, "ctx-2", m.LastContext(user))
	assert.Equal(t, "need the form?", m.LastFollowup(user))
	assert.Empty(t, m.LastContext(uuid.New()))
}

func TestClear(t *testing.T) {
	m := NewManager(5, nil)
	user := uuid.New()

	m.Update(user, "Q1", "A1", "", "")
	require.Equal(t, 1, m.ActiveUsers())

	m.Clear(user)
	assert.Zero(t, m.ActiveUsers())
	assert.Nil(t, m.Context(user, 5))
}

func TestPurgeRemovesInactiveUsers(t *testing.T) {
	m := NewManager(5, nil)
	active := uuid.New()
	inactive := uuid.New()

	base := time.Now()
	m.now = func() time.Time { return base.Add(-50 * time.Hour) }
	m.Update(inactive, "old question", "old answer", "", "")

	m.now = func() time.Time { return base.Add(-10 * time.Hour) }
	m.Update(active, "recent question", "recent answer", "", "")

	m.now = func() time.Time { return base }
	purged := m.Purge(DefaultTTL)

	assert.Equal(t, 1, purged)
	assert.Equal(t, 1, m.ActiveUsers())
	assert.Nil(t, m.Context(inactive, 5))
	assert.Len(t, m.Context(active, 5), 1)
}

func TestPurgeStateIsRecreatedAfterEviction(t *testing.T) {
	m := NewManager(5, nil)
	user := uuid.New()

	base := time.Now()
	m.now = func() time.Time { return base.Add(-72 * time.Hour) }
	m.Update(user, "stale", "stale", "", "stale-ctx")

	m.now = func() time.Time { return base }
	require.Equal(t, 1, m.Purge(DefaultTTL))
	require.Zero(t, m.ActiveUsers())

	// A purged user starts from scratch on the next update.
	m.Update(user, "fresh", "fresh", "", "fresh-ctx")
	assert.Equal(t, []string{"fresh"}, questions(m.Context(user, 5)))
	assert.Equal(t, "fresh-ctx", m.LastContext(user))
}

func TestPurgeNothingStale(t *testing.T) {
	m := NewManager(5, nil)
	m.Update(uuid.New(), "Q", "A", "", "")

	assert.Zero(t, m.Purge(DefaultTTL))
	assert.Equal(t, 1, m.ActiveUsers())
}

func TestConcurrentUpdates(t *testing.T) {
	const users = 8
	const turnsPerUser = 50

	m := NewManager(10, nil)
	ids := make([]uuid.UUID, users)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				for i := 0; i < turnsPerUser; i++ {
					m.Update(id, "Q", "A", "f", "c")
					m.Context(id, 5)
					m.LastContext(id)
				}
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, users, m.ActiveUsers())
	for _, id := range ids {
		assert.Len(t, m.Context(id, 100), 10, "buffer must never exceed maxTurns")
	}
}

func TestConcurrentPurgeAndUpdate(t *testing.T) {
	m := NewManager(5, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Update(uuid.New(), "Q", "A", "", "")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Purge(0)
			}
		}()
	}
	wg.Wait()
}
