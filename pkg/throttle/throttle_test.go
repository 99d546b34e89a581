package throttle_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/pkg/cache"
	"github.com/keshon/jukebox/pkg/throttle"
)

func fixture() (*throttle.Throttle, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mem := cache.NewMemory()
	mem.Now = clock
	th := throttle.New(mem)
	th.Now = clock
	return th, &now
}

func TestWindow(t *testing.T) {
	th, now := fixture()
	const fp = "user.1.2.ping"

	got := []bool{
		th.CanProceed(fp, 2, 5*time.Second),
		th.CanProceed(fp, 2, 5*time.Second),
		th.CanProceed(fp, 2, 5*time.Second),
	}
	assert.Equal(t, []bool{true, true, false}, got)

	*now = now.Add(5 * time.Second)
	assert.True(t, th.CanProceed(fp, 2, 5*time.Second), "a new window must open after decay")
}

func TestFixedWindowDoesNotSlide(t *testing.T) {
	th, now := fixture()
	const fp = "channel.9.play"

	require.True(t, th.CanProceed(fp, 3, 10*time.Second))
	*now = now.Add(8 * time.Second)
	require.True(t, th.CanProceed(fp, 3, 10*time.Second))

	rec := th.Peek(fp)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, 2*time.Second, rec.Remaining(*now), "later attempts must keep the original expiry")

	*now = now.Add(2 * time.Second)
	assert.Equal(t, throttle.Record{}, th.Peek(fp))
}

func TestRejectionDoesNotCount(t *testing.T) {
	th, _ := fixture()
	const fp = "guild.5.skip"
	require.True(t, th.CanProceed(fp, 1, time.Minute))
	for range 5 {
		assert.False(t, th.CanProceed(fp, 1, time.Minute))
	}
	assert.Equal(t, 1, th.Peek(fp).Count)
}

func TestIndependentFingerprints(t *testing.T) {
	th, _ := fixture()
	assert.True(t, th.CanProceed("a", 1, time.Minute))
	assert.True(t, th.CanProceed("b", 1, time.Minute))
	assert.False(t, th.CanProceed("a", 1, time.Minute))
}

func TestPeekAbsent(t *testing.T) {
	th, now := fixture()
	rec := th.Peek("never")
	assert.Zero(t, rec.Count)
	assert.Zero(t, rec.Remaining(*now))
}

func TestConcurrentAttempts(t *testing.T) {
	th := throttle.New(cache.NewMemory())
	var passed atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.CanProceed("burst", 5, time.Minute) {
				passed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 5, passed.Load())
}
