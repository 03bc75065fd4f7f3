package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/reelbot/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
telegram:
  token: "123456:ABCDEF"
  admin_user_ids: [42, 43]
  channel_id: "@mychannel"
media:
  timeout: 90s
messages:
  done: "ok"
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)

		assert.Equal(t, "123456:ABCDEF", cfg.Telegram.Token)
		assert.Equal(t, []int64{42, 43}, cfg.Telegram.AdminUserIDs)
		assert.Equal(t, "@mychannel", cfg.Telegram.ChannelID)
		assert.Equal(t, 90*time.Second, cfg.Media.Timeout)
		assert.Equal(t, "ok", cfg.Messages.Done)
		// untouched keys keep their defaults
		assert.Equal(t, config.DefaultMessages.Welcome, cfg.Messages.Welcome)
		assert.Equal(t, config.DefaultDBPath, cfg.Database.Path)
		assert.Contains(t, cfg.Scheduler.Tasks, "sql_maintenance")
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "telegram:\n  token: \"from-file\"\n")
		t.Setenv("REELBOT_TELEGRAM_TOKEN", "from-env")
		t.Setenv("REELBOT_DATABASE_PATH", "/tmp/env.db")

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Telegram.Token)
		assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	})

	t.Run("missing token fails validation", func(t *testing.T) {
		path := writeConfig(t, "logger:\n  level: debug\n")
		_, err := config.Load(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("invalid log level fails validation", func(t *testing.T) {
		path := writeConfig(t, "telegram:\n  token: \"x\"\nlogger:\n  level: verbose\n")
		_, err := config.Load(path)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("admin api requires credentials when enabled", func(t *testing.T) {
		path := writeConfig(t, "telegram:\n  token: \"x\"\nadmin:\n  enabled: true\n")
		_, err := config.Load(path)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		t.Setenv("REELBOT_TELEGRAM_TOKEN", "env-only")
		cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "env-only", cfg.Telegram.Token)
	})
}

func TestTelegramConfigIsAdmin(t *testing.T) {
	t.Parallel()

	tc := config.TelegramConfig{AdminUserIDs: []int64{1, 2}}
	assert.True(t, tc.IsAdmin(2))
	assert.False(t, tc.IsAdmin(3))
	assert.False(t, config.TelegramConfig{}.IsAdmin(1))
}
