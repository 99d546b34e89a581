package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/pkg/datastore"
)

func testStorage(t *testing.T) *Storage {
	t.Helper()
	cfg := datastore.DefaultConfig(filepath.Join(t.TempDir(), "settings.json"))
	cfg.AutoSaveInterval = 0
	ds, err := datastore.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return New(ds, logging.Discard())
}

func TestPrefixesAndAliases(t *testing.T) {
	s := testStorage(t)
	assert.Empty(t, s.Prefixes("g"))

	require.NoError(t, s.SetPrefix("g", "music", "?"))
	require.NoError(t, s.SetAlias("g", "LOFI", "!play lofi"))
	assert.Equal(t, map[string]string{"music": "?"}, s.Prefixes("g"))
	assert.Equal(t, "!play lofi", s.Aliases("g")["lofi"])

	require.NoError(t, s.SetPrefix("g", "music", ""))
	require.NoError(t, s.SetAlias("g", "lofi", ""))
	assert.Empty(t, s.Prefixes("g"))
	assert.Empty(t, s.Aliases("g"))
}

func TestModuleToggles(t *testing.T) {
	s := testStorage(t)
	assert.True(t, s.ModuleEnabled("g", "c1", "music"))

	require.NoError(t, s.SetModule("g", "c1", "music", false))
	assert.False(t, s.ModuleEnabled("g", "c1", "music"))
	assert.True(t, s.ModuleEnabled("g", "c2", "music"))

	require.NoError(t, s.SetModule("g", AllChannels, "music", false))
	require.NoError(t, s.SetModule("g", "c1", "music", true))
	assert.False(t, s.ModuleEnabled("g", "c1", "music"))
	assert.False(t, s.ModuleEnabled("g", "c2", "music"))
}

func TestUpdateKeepsUnmodelledKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"g":{"autorole":"r1","local":"en","aliases":{"x":"!ping"}}}`), 0o644))
	cfg := datastore.DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	ds, err := datastore.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	s := New(ds, logging.Discard())

	assert.Equal(t, "!ping", s.Aliases("g")["x"])
	require.NoError(t, s.SetPrefix("g", "music", "?"))

	var raw map[string]any
	_, err = ds.Get("g", &raw)
	require.NoError(t, err)
	assert.Equal(t, "r1", raw["autorole"])
	assert.Equal(t, "en", raw["local"])
	assert.Equal(t, map[string]any{"music": "?"}, raw["prefixes"])
}

func TestModuleSetting(t *testing.T) {
	s := testStorage(t)
	_, set := s.ModuleSetting("g", AllChannels, "music")
	assert.False(t, set)

	require.NoError(t, s.SetModule("g", AllChannels, "music", false))
	on, set := s.ModuleSetting("g", AllChannels, "music")
	assert.True(t, set)
	assert.False(t, on)
}

func TestCommandHistoryLimit(t *testing.T) {
	s := testStorage(t)
	for i := range commandHistoryLimit + 5 {
		require.NoError(t, s.AppendCommand("g", core.CommandRecord{Command: fmt.Sprint(i), Datetime: time.Now()}))
	}
	hist, err := s.CommandHistory("g")
	require.NoError(t, err)
	require.Len(t, hist, commandHistoryLimit)
	assert.Equal(t, "5", hist[0].Command)
}

func TestAnnounceChannels(t *testing.T) {
	s := testStorage(t)
	_, err := s.AnnounceChannel("g1")
	assert.ErrorIs(t, err, ErrNoAnnounceChannel)

	require.NoError(t, s.SetAnnounceChannel("g1", "c1"))
	require.NoError(t, s.SetPrefix("g2", "music", "?"))
	assert.Equal(t, map[string]string{"g1": "c1"}, s.AnnounceChannels())
}

var dbCount atomic.Int64

func testPlaylists(t *testing.T) *Playlists {
	t.Helper()
	k := dbCount.Add(1)
	uri := fmt.Sprintf("file:playlists-%d.db?mode=memory&cache=shared", k)
	p, err := OpenPlaylists(context.Background(), uri, sqlitex.PoolOptions{
		Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPlaylists(t *testing.T) {
	ctx := context.Background()
	p := testPlaylists(t)

	tracks := []Track{
		{Title: "a", Duration: "0:03:00", SourceLink: "https://youtu.be/a"},
		{Title: "b", Duration: "0:04:00", SourceLink: "https://youtu.be/b"},
	}
	require.NoError(t, p.Save(ctx, "g", "mix", tracks))
	got, err := p.Load(ctx, "g", "mix")
	require.NoError(t, err)
	assert.Equal(t, tracks, got)

	require.NoError(t, p.Save(ctx, "g", "mix", tracks[:1]))
	got, err = p.Load(ctx, "g", "mix")
	require.NoError(t, err)
	assert.Equal(t, tracks[:1], got)

	list, err := p.List(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"mix": 1}, list)

	_, err = p.Load(ctx, "other", "mix")
	assert.ErrorIs(t, err, ErrNoPlaylist)

	require.NoError(t, p.Delete(ctx, "g", "mix"))
	assert.ErrorIs(t, p.Delete(ctx, "g", "mix"), ErrNoPlaylist)
}
