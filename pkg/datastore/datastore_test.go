package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings struct {
	Prefix string   `json:"prefix"`
	Off    []string `json:"off"`
}

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "store.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	s, err := Open(cfg)
	require.NoError(t, err)
	return s, path
}

func TestOpenCreatesFile(t *testing.T) {
	_, path := openTemp(t)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestPutGetPersist(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Put("g1", settings{Prefix: "?", Off: []string{"music"}}))

	var got settings
	ok, err := s.Get("g1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "?", got.Prefix)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put("g2", settings{}), ErrClosed)

	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	s2, err := Open(cfg)
	require.NoError(t, err)
	got = settings{}
	ok, err = s2.Get("g1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"music"}, got.Off)
	assert.Equal(t, []string{"g1"}, s2.Keys())
}

func TestGetMissing(t *testing.T) {
	s, _ := openTemp(t)
	var got settings
	ok, err := s.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReloadDiscardsUnsaved(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.Put("a", 1))
	require.NoError(t, s.Save())
	require.NoError(t, s.Put("b", 2))
	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"a"}, s.Keys())
}

func TestBackupsArePruned(t *testing.T) {
	s, path := openTemp(t)
	for i := range 6 {
		require.NoError(t, s.Put("n", i))
		require.NoError(t, s.Save())
	}
	matches, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 3)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Open(DefaultConfig(path))
	assert.Error(t, err)
}
