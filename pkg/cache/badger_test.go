package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/pkg/cache"
)

func TestBadger(t *testing.T) {
	b, err := cache.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	require.NoError(t, b.Put("k", []byte("v"), time.Hour))
	v, ok := b.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	v, ok = b.Pull("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))
	assert.False(t, b.Has("k"))

	require.NoError(t, b.Put("f", []byte("x"), 0))
	require.NoError(t, b.Forget("f"))
	assert.False(t, b.Has("f"))
}
