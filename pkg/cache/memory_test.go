package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/pkg/cache"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemory() (*cache.Memory, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := cache.NewMemory()
	m.Now = c.now
	return m, c
}

func TestMemoryExpiry(t *testing.T) {
	m, c := newMemory()
	require.NoError(t, m.Put("k", []byte("v"), 10*time.Second))
	require.NoError(t, m.Put("forever", []byte("x"), 0))

	v, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	c.advance(9 * time.Second)
	assert.True(t, m.Has("k"))

	c.advance(time.Second)
	assert.False(t, m.Has("k"), "entry must expire exactly at its deadline")
	assert.True(t, m.Has("forever"))
}

func TestMemoryForgetAndPull(t *testing.T) {
	m, _ := newMemory()
	require.NoError(t, m.Put("a", []byte("1"), time.Minute))
	require.NoError(t, m.Forget("a"))
	assert.False(t, m.Has("a"))
	require.NoError(t, m.Forget("missing"))

	require.NoError(t, m.Put("b", []byte("2"), time.Minute))
	v, ok := m.Pull("b")
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
	_, ok = m.Pull("b")
	assert.False(t, ok, "second pull must find nothing")
}

func TestMemorySweep(t *testing.T) {
	m, c := newMemory()
	require.NoError(t, m.Put("a", []byte("1"), time.Second))
	require.NoError(t, m.Put("b", []byte("2"), time.Hour))
	c.advance(2 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestRemember(t *testing.T) {
	m, _ := newMemory()
	calls := 0
	fn := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}
	for range 3 {
		v, err := cache.Remember(m, "r", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, "computed", string(v))
	}
	assert.Equal(t, 1, calls)
}

func TestTypedValues(t *testing.T) {
	type rec struct {
		Count int       `json:"count"`
		Until time.Time `json:"until"`
	}
	m, c := newMemory()
	want := rec{Count: 3, Until: c.t.Add(time.Minute)}
	require.NoError(t, cache.PutValue(m, "rec", want, time.Minute))

	got, ok, err := cache.GetValue[rec](m, "rec")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Count, got.Count)
	assert.True(t, want.Until.Equal(got.Until))

	_, ok, err = cache.GetValue[rec](m, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}
