package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/deskmate/internal/department"
	"github.com/opsdesk/deskmate/internal/testutil"
)

func TestBacklogStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(tdb.Pool)
	userID := uuid.New()

	insert := func(text, dept, status string, age time.Duration) uuid.UUID {
		id := uuid.New()
		_, err := tdb.Pool.Exec(ctx, `
			INSERT INTO user_questions (id, userid, query, status, dept, createdat)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), now() - $6::interval)`,
			id, userID, text, status, dept, age.String())
		require.NoError(t, err)
		return id
	}

	oldIT := insert("how do I reset my password", "IT", StatusPending, 2*time.Hour)
	newIT := insert("vpn will not connect", "IT", StatusPending, time.Hour)
	hr := insert("vacation policy question", "HR", StatusPending, time.Hour)
	untagged := insert("where do deliveries go", "", StatusPending, time.Hour)
	insert("already handled", "IT", StatusProcessed, time.Hour)

	t.Run("pending grouped by department", func(t *testing.T) {
		grouped, err := store.PendingByDepartment(ctx)
		require.NoError(t, err)

		require.Len(t, grouped, 3)
		require.Len(t, grouped["IT"], 2)
		assert.Equal(t, oldIT, grouped["IT"][0].ID, "groups are ordered oldest first")
		assert.Equal(t, newIT, grouped["IT"][1].ID)
		assert.Equal(t, hr, grouped["HR"][0].ID)
		assert.Equal(t, untagged, grouped[department.General][0].ID,
			"untagged questions group under General")
		assert.Equal(t, userID, grouped["HR"][0].UserID)
	})

	t.Run("mark processed", func(t *testing.T) {
		require.NoError(t, store.MarkProcessed(ctx, []uuid.UUID{oldIT, newIT}))

		grouped, err := store.PendingByDepartment(ctx)
		require.NoError(t, err)
		assert.Empty(t, grouped["IT"])
		assert.Len(t, grouped["HR"], 1)
	})

	t.Run("mark processed unknown id", func(t *testing.T) {
		err := store.MarkProcessed(ctx, []uuid.UUID{uuid.New()})
		assert.Error(t, err, "row count mismatch must surface")
	})

	t.Run("mark processed empty slice", func(t *testing.T) {
		assert.NoError(t, store.MarkProcessed(ctx, nil))
	})
}

func TestAddRoutingFailureIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(tdb.Pool)
	require.NoError(t, store.AddRoutingFailure(ctx, RoutingFailure{
		Query:    "how do I reset my vpn password from home",
		Detected: "IT",
		Expected: "HR",
	}))

	var query, detected, expected, status string
	err := tdb.Pool.QueryRow(ctx,
		`SELECT query, detected, expected, status FROM dept_failures`).
		Scan(&query, &detected, &expected, &status)
	require.NoError(t, err)
	assert.Equal(t, "how do I reset my vpn password from home", query)
	assert.Equal(t, "IT", detected)
	assert.Equal(t, "HR", expected)
	assert.Equal(t, "pending", status, "new failures queue as pending")
}
