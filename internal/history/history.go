// Package history maintains bounded per-user conversation state.
//
// Each user owns a FIFO buffer of recent turns (capacity maxTurns) plus the
// single most recent answer context and follow-up. State lives only in
// memory: it is created on a user's first update, mutated under that user's
// exclusive lock, and destroyed on explicit clear or TTL purge.
//
// Lock discipline: a global mutex guards only map membership; all turn-level
// work happens under the per-user lock. Operations on distinct users run
// fully in parallel, operations on the same user are strictly serialized.
// The purge sweep also evicts the per-user lock itself, so memory stays
// bounded by the set of recently active users.
package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the default inactivity window before a user's state is
// eligible for purging.
const DefaultTTL = 48 * time.Hour

// Turn is one completed question/answer exchange. Immutable once appended.
type Turn struct {
	Question  string
	Answer    string
	Timestamp time.Time
}

// userState is one user's conversation state. Guarded by its own mutex.
type userState struct {
	mu           sync.Mutex
	turns        []Turn
	lastContext  string
	lastFollowup string
}

// latest returns the timestamp of the most recent turn.
// Callers must hold st.mu.
func (st *userState) latest() time.Time {
	if len(st.turns) == 0 {
		return time.Time{}
	}
	return st.turns[len(st.turns)-1].Timestamp
}

// Manager tracks conversation state for all active users.
// It is safe for concurrent use by multiple goroutines.
type Manager struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*userState
	maxTurns int
	logger   *slog.Logger

	// now is swapped in tests to control purge timing.
	now func() time.Time
}

// NewManager creates a Manager keeping at most maxTurns turns per user.
func NewManager(maxTurns int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		users:    make(map[uuid.UUID]*userState),
		maxTurns: maxTurns,
		logger:   logger,
		now:      time.Now,
	}
}

// state returns the user's state, creating it when create is true.
// The global lock is held only for the map access.
func (m *Manager) state(user uuid.UUID, create bool) *userState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.users[user]
	if !ok && create {
		st = &userState{}
		m.users[user] = st
	}
	return st
}

// Update appends a completed turn and overwrites the last context and
// follow-up. The oldest turn is evicted once the buffer is full.
func (m *Manager) Update(user uuid.UUID, question, answer, followup, context string) {
	st := m.state(user, true)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.turns = append(st.turns, Turn{
		Question:  question,
		Answer:    answer,
		Timestamp: m.now(),
	})
	if len(st.turns) > m.maxTurns {
		st.turns = st.turns[len(st.turns)-m.maxTurns:]
	}
	st.lastContext = context
	st.lastFollowup = followup
}

// Context returns up to k most recent turns in chronological order.
// An unknown user yields nil.
func (m *Manager) Context(user uuid.UUID, k int) []Turn {
	st := m.state(user, false)
	if st == nil || k <= 0 {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if k > len(st.turns) {
		k = len(st.turns)
	}
	out := make([]Turn, k)
	copy(out, st.turns[len(st.turns)-k:])
	return out
}

// LastContext returns the evidence context of the user's most recent answer.
func (m *Manager) LastContext(user uuid.UUID) string {
	st := m.state(user, false)
	if st == nil {
		return ""
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastContext
}

// LastFollowup returns the follow-up attached to the user's most recent
// answer.
func (m *Manager) LastFollowup(user uuid.UUID) string {
	st := m.state(user, false)
	if st == nil {
		return ""
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastFollowup
}

// Clear removes all state for a user, including the per-user lock.
func (m *Manager) Clear(user uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, user)
}

// ActiveUsers returns the number of users with live state.
func (m *Manager) ActiveUsers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// Purge removes every user whose latest turn is older than ttl, along with
// the per-user lock. It returns the number of users removed.
//
// Staleness is checked per user without holding the global lock, then
// re-verified during removal so a user who turns active mid-sweep survives.
func (m *Manager) Purge(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	snapshot := make(map[uuid.UUID]*userState, len(m.users))
	for id, st := range m.users {
		snapshot[id] = st
	}
	m.mu.Unlock()

	var stale []uuid.UUID
	for id, st := range snapshot {
		st.mu.Lock()
		old := st.latest().Before(cutoff)
		st.mu.Unlock()
		if old {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for _, id := range stale {
		st, ok := m.users[id]
		if !ok {
			continue
		}
		st.mu.Lock()
		old := st.latest().Before(cutoff)
		st.mu.Unlock()
		if old {
			delete(m.users, id)
			purged++
		}
	}

	if purged > 0 {
		m.logger.Debug("purged inactive users", "purged", purged, "remaining", len(m.users))
	}
	return purged
}
