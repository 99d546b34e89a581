package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "!", cfg.DefaultPrefix)
	assert.Equal(t, ".", cfg.Prefix(CategoryAdministration))
	assert.Equal(t, "!", cfg.Prefix(CategoryMusic))
	assert.Equal(t, "DJ", cfg.DJRole)
	assert.Equal(t, 5, cfg.BroadcastBatch)
	assert.Equal(t, 500*time.Millisecond, cfg.BroadcastPause)
	assert.Equal(t, 120*time.Second, cfg.BroadcastTTL)
	assert.Equal(t, 4500*time.Millisecond, cfg.WarningTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	os.Unsetenv("DISCORD_TOKEN")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISCORD_TOKEN=fromfile\nBOT_ADMINS=1,2\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("BOT_ADMINS")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.DiscordToken)
	assert.True(t, cfg.IsBotAdmin("2"))
	assert.False(t, cfg.IsBotAdmin("3"))
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsUnknownCache(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CACHE_BACKEND", "redis")
	_, err := Load("")
	assert.ErrorContains(t, err, "CACHE_BACKEND")
}

func TestLoadMissingEnvFile(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
