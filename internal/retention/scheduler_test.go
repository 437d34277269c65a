package retention

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-ai/recollect/internal/db"
	"github.com/tidemark-ai/recollect/internal/db/migrations"
	"github.com/tidemark-ai/recollect/internal/logging"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	migrations.QuietMode = true
	logging.Disable()

	store, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAgedItems(t *testing.T, store *db.Store, threadID string, ages ...time.Duration) {
	t.Helper()
	ctx := context.Background()
	_, err := store.GetOrCreateThread(ctx, threadID, nil)
	require.NoError(t, err)
	for i, age := range ages {
		_, _, err := store.UpsertItem(ctx, db.Item{
			ThreadID: threadID, SourceID: fmt.Sprintf("%s-%d", threadID, i),
			Type: db.ItemTypeUser, Role: "user", Content: "msg",
			CreatedAt: time.Now().Add(-age),
		})
		require.NoError(t, err)
	}
}

func TestRunCleanupNowCountsBothTables(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seedAgedItems(t, store, "dm:c", time.Hour, 100*time.Hour, 200*time.Hour)

	run, err := store.StartRun(ctx, "dm:c", "", "fake", "m")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run.ID, db.RunStatusSucceeded, "", nil, 0))
	_, err = store.DB().ExecContext(ctx, `UPDATE runs SET created_at = ? WHERE id = ?`,
		time.Now().Add(-400*time.Hour).Unix(), run.ID)
	require.NoError(t, err)

	s := New(store, DefaultConfig())
	total, err := s.RunCleanupNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "two aged items plus one aged run")

	// Fresh rows and the thread itself survive
	count, err := store.CountItems(ctx, "dm:c")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = store.GetThread(ctx, "dm:c")
	assert.NoError(t, err)
}

func TestRunCleanupNowIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seedAgedItems(t, store, "dm:c", 100*time.Hour)

	s := New(store, DefaultConfig())
	first, err := s.RunCleanupNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := s.RunCleanupNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)
}

func TestCleanupWithoutStore(t *testing.T) {
	s := New(nil, DefaultConfig())
	total, err := s.RunCleanupNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestStartStop(t *testing.T) {
	s := New(newStore(t), Config{CronSpec: "@hourly", ItemTTLHours: 72, RunTTLHours: 336})
	require.NoError(t, s.Start())
	s.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(nil, Config{CronSpec: "not a cron spec", ItemTTLHours: 1, RunTTLHours: 1})
	assert.Error(t, s.Start())
}
