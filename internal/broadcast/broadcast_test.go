package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/keshon/jukebox/pkg/cache"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/retrylimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, channelID, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[channelID] {
		return errors.New("missing access")
	}
	s.sent = append(s.sent, channelID+":"+body)
	return nil
}

type staticTargets map[string]string

func (t staticTargets) AnnounceChannels() map[string]string { return t }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	b      *Broadcaster
	jobs   *jobmgr.Manager
	sender *recordingSender
	clock  *clock
	pauses []time.Duration
	result map[string]int
}

func newFixture(t *testing.T, targets int) *fixture {
	t.Helper()
	f := &fixture{
		sender: &recordingSender{},
		clock:  &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		result: map[string]int{},
	}
	store := cache.NewMemory()
	store.Now = f.clock.Now
	f.jobs = jobmgr.NewManager(context.Background(), nil)

	tg := staticTargets{}
	for i := range targets {
		tg[fmt.Sprintf("g%02d", i)] = fmt.Sprintf("c%02d", i)
	}
	cfg := DefaultConfig()
	cfg.Retry = retrylimit.Config{MaxAttempts: 1}
	f.b = New(store, f.jobs, f.sender, tg, nil, cfg, slog.New(slog.DiscardHandler))
	f.b.Now = f.clock.Now
	f.b.Sleep = func(_ context.Context, d time.Duration) error {
		f.pauses = append(f.pauses, d)
		return nil
	}
	f.b.Result = func(r string) { f.result[r]++ }
	return f
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.jobs.Wait(ctx))
}

func TestPrepareDoesNotSend(t *testing.T) {
	f := newFixture(t, 3)
	hash, err := f.b.Prepare("hello")
	require.NoError(t, err)
	require.Len(t, hash, 10)

	body, ok := f.b.Peek(hash)
	require.True(t, ok)
	assert.Equal(t, "hello", body)
	assert.Empty(t, f.sender.sent)
}

func TestPrepareRejectsEmpty(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.b.Prepare("")
	require.Error(t, err)
}

func TestSendWithinTTL(t *testing.T) {
	f := newFixture(t, 3)
	hash, err := f.b.Prepare("hello")
	require.NoError(t, err)

	f.clock.Advance(60 * time.Second)
	ok, err := f.b.Send(hash)
	require.NoError(t, err)
	require.True(t, ok)
	f.wait(t)

	assert.Equal(t, []string{"c00:hello", "c01:hello", "c02:hello"}, f.sender.sent)
	assert.Equal(t, 3, f.result[ResultSent])
}

func TestSendAfterExpiryIsNoop(t *testing.T) {
	f := newFixture(t, 3)
	hash, err := f.b.Prepare("hello")
	require.NoError(t, err)

	f.clock.Advance(121 * time.Second)
	ok, err := f.b.Send(hash)
	require.NoError(t, err)
	assert.False(t, ok)
	f.wait(t)
	assert.Empty(t, f.sender.sent)
}

func TestSendTwiceSendsOnce(t *testing.T) {
	f := newFixture(t, 2)
	hash, err := f.b.Prepare("hello")
	require.NoError(t, err)

	first, err := f.b.Send(hash)
	require.NoError(t, err)
	second, err := f.b.Send(hash)
	require.NoError(t, err)
	f.wait(t)

	assert.True(t, first)
	assert.False(t, second)
	assert.Len(t, f.sender.sent, 2)
}

func TestSendUnknownHash(t *testing.T) {
	f := newFixture(t, 2)
	ok, err := f.b.Send("deadbeef00")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFanoutBatches(t *testing.T) {
	f := newFixture(t, 12)
	f.sender.fail = map[string]bool{"c07": true}
	hash, err := f.b.Prepare("maintenance at noon")
	require.NoError(t, err)

	ok, err := f.b.Send(hash)
	require.NoError(t, err)
	require.True(t, ok)
	f.wait(t)

	// 12 targets in batches of 5 pause twice.
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, f.pauses)
	assert.Len(t, f.sender.sent, 11)
	assert.Equal(t, 11, f.result[ResultSent])
	assert.Equal(t, 1, f.result[ResultFailed])
}

func TestDistinctHashesForRepeatedBody(t *testing.T) {
	f := newFixture(t, 1)
	h1, err := f.b.Prepare("same")
	require.NoError(t, err)
	f.clock.Advance(time.Millisecond)
	h2, err := f.b.Prepare("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
