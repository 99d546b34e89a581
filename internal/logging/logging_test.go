package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: slog.LevelInfo, Console: &buf, NoColor: true})
	defer closer.Close()

	Component(log, "music").Debug("hidden")
	Component(log, "music").Info("track started", slog.String("title", "song"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "track started")
	assert.Contains(t, out, "component=music")
}

func TestFileTee(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "bot.log")
	log, closer := New(Options{Level: slog.LevelDebug, Console: &buf, NoColor: true, File: path})

	log.With(slog.String(ComponentKey, "core")).Warn("throttled")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"throttled"`)
	assert.Contains(t, string(b), `"component":"core"`)
	assert.Contains(t, buf.String(), "throttled")
}
