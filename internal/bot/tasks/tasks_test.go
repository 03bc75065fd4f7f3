package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/config"
	"github.com/edgard/reelbot/internal/database"
	"github.com/edgard/reelbot/internal/logger"
)

func newTestDeps(t *testing.T, tempDir string) TaskDeps {
	t.Helper()
	db, err := database.NewDB(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	return TaskDeps{
		Logger: logger.Discard(),
		Store:  database.NewStore(db, nil),
		Config: &config.Config{
			Media: config.MediaConfig{TempDir: tempDir},
			Bot:   config.BotConfig{HandlerTimeout: time.Minute},
		},
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	tasks := RegisterAllTasks(newTestDeps(t, t.TempDir()))
	assert.Len(t, tasks, 2)
	assert.Contains(t, tasks, SQLMaintenance)
	assert.Contains(t, tasks, TempSweep)
	for name := range config.DefaultSchedulerTasks {
		assert.Contains(t, tasks, name, "every default task has an implementation")
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	task := newSQLMaintenanceTask(newTestDeps(t, t.TempDir()))
	assert.NoError(t, task(context.Background()))
}

func TestTempSweepTask(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	old := time.Now().Add(-3 * time.Hour)

	mkdir := func(name string, mtime time.Time) string {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Join(path, "inner"), 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(path, "inner", "00.jpg"), []byte("x"), 0o600))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}

	stale := mkdir("reelbot-stale", old)
	fresh := mkdir("reelbot-fresh", time.Now())
	foreign := mkdir("other-stale", old)

	task := newTempSweepTask(newTestDeps(t, root))
	require.NoError(t, task(context.Background()))

	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, foreign, "only pipeline directories are swept")
}

func TestTempSweepMissingRoot(t *testing.T) {
	t.Parallel()

	task := newTempSweepTask(newTestDeps(t, filepath.Join(t.TempDir(), "missing")))
	assert.NoError(t, task(context.Background()))
}
