package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/keshon/jukebox/internal/broadcast"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cache"
	"github.com/keshon/jukebox/pkg/datastore"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/retrylimit"
	"github.com/keshon/jukebox/pkg/throttle"
)

type fakeContext struct {
	guild, channel, author string
	private                bool
	userPerms, botPerms    int64
	roles                  []string

	mu      sync.Mutex
	replies []*discordgo.MessageEmbed
}

func (f *fakeContext) GuildID() string                 { return f.guild }
func (f *fakeContext) ChannelID() string               { return f.channel }
func (f *fakeContext) AuthorID() string                { return f.author }
func (f *fakeContext) AuthorName() string              { return "name-" + f.author }
func (f *fakeContext) MessageID() string               { return "m0" }
func (f *fakeContext) IsPrivate() bool                 { return f.private }
func (f *fakeContext) UserPermissions() (int64, error) { return f.userPerms, nil }
func (f *fakeContext) BotPermissions() (int64, error)  { return f.botPerms, nil }
func (f *fakeContext) RoleNames() ([]string, error)    { return f.roles, nil }
func (f *fakeContext) DeleteMessage(string) error      { return nil }

func (f *fakeContext) Reply(e *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, e)
	return "r" + strconv.Itoa(len(f.replies)), nil
}

func (f *fakeContext) last(t *testing.T) *discordgo.MessageEmbed {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.replies)
	return f.replies[len(f.replies)-1]
}

func (f *fakeContext) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

type fakeGateway struct {
	mu     sync.Mutex
	bans   []string
	kicks  []string
	status string
}

func (g *fakeGateway) Ban(guildID, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bans = append(g.bans, userID+":"+reason)
	return nil
}

func (g *fakeGateway) Kick(guildID, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kicks = append(g.kicks, userID)
	return nil
}

func (g *fakeGateway) SetStatus(text string) error { g.status = text; return nil }
func (g *fakeGateway) Latency() time.Duration      { return 42 * time.Millisecond }

// voice fakes: every user sits in "vc" and playback never ends on its own.

type fakeVoice struct{}

func (fakeVoice) ChannelID() string { return "vc" }
func (fakeVoice) Disconnect() error { return nil }

type voiceGateway struct{}

func (voiceGateway) UserVoiceChannel(_, _ string) (string, error) { return "vc", nil }
func (voiceGateway) Join(context.Context, string, string) (music.Voice, error) {
	return fakeVoice{}, nil
}
func (voiceGateway) Listeners(_, _ string) ([]music.Listener, error) {
	return []music.Listener{{UserID: "dj"}, {UserID: "u1"}}, nil
}

type playback struct {
	done   chan struct{}
	once   sync.Once
	volume atomic.Int32
}

func (p *playback) Done() <-chan struct{} { return p.done }
func (p *playback) Err() error            { return nil }
func (p *playback) Stop()                 { p.once.Do(func() { close(p.done) }) }
func (p *playback) SetPaused(bool)        {}
func (p *playback) SetVolume(v int)       { p.volume.Store(int32(v)) }

type streamer struct {
	mu  sync.Mutex
	cur *playback
}

func (s *streamer) Play(_ context.Context, _ music.Voice, _ music.Entry, volume int) (music.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = &playback{done: make(chan struct{})}
	s.cur.volume.Store(int32(volume))
	return s.cur, nil
}

type notifier struct{}

func (notifier) NowPlaying(string, string, music.Entry) {}
func (notifier) QueueEnded(string, string)              {}

type resolver struct{}

func (resolver) Resolve(_ context.Context, input, requester string) ([]music.Entry, error) {
	switch input {
	case "nothing":
		return nil, fmt.Errorf("no results")
	case "broken":
		return []music.Entry{
			{Title: "Gone 1", StreamURL: music.InvalidStream, RequesterID: requester},
			{Title: "Gone 2", StreamURL: music.InvalidStream, RequesterID: requester},
		}, nil
	}
	return []music.Entry{{
		Title:       "Track " + input,
		Duration:    "0:03:00",
		StreamURL:   "https://cdn.example/" + input,
		SourceLink:  "https://example.com/" + input,
		RequesterID: requester,
	}}, nil
}

type targets map[string]string

func (t targets) AnnounceChannels() map[string]string { return t }

type recorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *recorder) Send(_ context.Context, channelID, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, channelID+":"+body)
	return nil
}

type bot struct {
	deps     *Deps
	dispatch *core.Dispatcher
	gateway  *fakeGateway
	stream   *streamer
	sent     *recorder
	executed atomic.Uint64
}

func newBot(t *testing.T) *bot {
	t.Helper()
	log := logging.Discard()
	cfg := &config.Config{
		BotAdmins:        []string{"owner"},
		DefaultPrefix:    "!",
		CategoryPrefixes: map[string]string{config.CategoryAdministration: "."},
		DJRole:           "DJ",
		BroadcastTTL:     120 * time.Second,
	}

	dsCfg := datastore.DefaultConfig(filepath.Join(t.TempDir(), "settings.json"))
	dsCfg.AutoSaveInterval = 0
	ds, err := datastore.Open(dsCfg)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	st := storage.New(ds, log)

	uri := fmt.Sprintf("file:commands-%s.db?mode=memory&cache=shared", t.Name())
	pl, err := storage.OpenPlaylists(context.Background(), uri, sqlitex.PoolOptions{
		Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pl.Close() })

	jobs := jobmgr.NewManager(context.Background(), nil)
	b := &bot{gateway: &fakeGateway{}, stream: &streamer{}, sent: &recorder{}}
	bc := broadcast.New(cache.NewMemory(), jobs, b.sent, targets{"g1": "news", "g2": "general"}, nil,
		broadcast.Config{TTL: cfg.BroadcastTTL, BatchSize: 5, Retry: retrylimit.Config{MaxAttempts: 1}}, log)

	guards := &core.Guards{
		IsBotAdmin: cfg.IsBotAdmin,
		Throttle:   throttle.New(cache.NewMemory()),
		Jobs:       jobs,
		WarningTTL: time.Second,
		History:    st,
		Log:        log,
	}
	reg := core.NewRegistry(core.NewMiddlewareRegistry(guards), cfg.Prefix, func() { b.executed.Add(1) }, log)
	b.deps = &Deps{
		Config:    cfg,
		Registry:  reg,
		Storage:   st,
		Playlists: pl,
		Music:     music.NewManager(voiceGateway{}, b.stream, notifier{}, log),
		Tracks:    resolver{},
		Broadcast: bc,
		Gateway:   b.gateway,
		Jobs:      jobs,
		Log:       log,
		Executed:  b.executed.Load,
		Started:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       func() time.Time { return time.Date(2024, 1, 1, 1, 2, 3, 0, time.UTC) },
	}
	require.NoError(t, reg.Register(Factories(b.deps)...))
	b.dispatch = core.NewDispatcher(reg, st, Help(b.deps), log)
	t.Cleanup(b.deps.Music.LeaveAll)
	return b
}

func member(id string, roles ...string) *fakeContext {
	return &fakeContext{guild: "g1", channel: "c1", author: id, roles: roles, botPerms: discordgo.PermissionAll}
}

func TestAllCommandsRegister(t *testing.T) {
	b := newBot(t)
	names := make([]string, 0)
	for _, e := range b.deps.Registry.Entries() {
		names = append(names, e.Descriptor().Name)
	}
	for _, want := range []string{"play", "voteskip", "volume", "playlist", "ban", "reload", "broadcastsend", "ping", "help", "stats"} {
		assert.Contains(t, names, want)
	}
}

func TestVolumeIsClamped(t *testing.T) {
	b := newBot(t)
	dj := member("dj", "DJ")

	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!play intro"))
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!volume 150"))

	reply := dj.last(t)
	assert.Contains(t, reply.Description, "100%")
	assert.Equal(t, 100, b.deps.Music.Status("g1").Volume)
	assert.EqualValues(t, 100, b.stream.cur.volume.Load())
}

func TestVolumeRequiresDJ(t *testing.T) {
	b := newBot(t)
	require.True(t, b.dispatch.Dispatch(context.Background(), member("dj", "DJ"), "!play intro"))

	listener := member("u1")
	require.True(t, b.dispatch.Dispatch(context.Background(), listener, "!volume 10"))
	assert.Equal(t, core.ErrorColor, listener.last(t).Color)
	assert.Equal(t, 100, b.deps.Music.Status("g1").Volume)
}

func TestVolumeWithNothingPlaying(t *testing.T) {
	b := newBot(t)
	dj := member("dj", "DJ")
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!volume 50"))
	assert.Equal(t, core.WarningColor, dj.last(t).Color)
}

func TestBanWithoutPermission(t *testing.T) {
	b := newBot(t)
	user := member("u1")
	user.userPerms = discordgo.PermissionSendMessages
	user.botPerms = discordgo.PermissionBanMembers

	require.True(t, b.dispatch.Dispatch(context.Background(), user, ".ban <@123> spamming"))
	require.Equal(t, 1, user.count())
	reply := user.last(t)
	assert.Equal(t, core.WarningColor, reply.Color)
	assert.Contains(t, reply.Description, "You don't have permission")
	assert.Contains(t, reply.Description, "Ban Members")
	assert.Empty(t, b.gateway.bans)
}

func TestBanWithPermission(t *testing.T) {
	b := newBot(t)
	mod := member("mod")
	mod.userPerms = discordgo.PermissionBanMembers

	require.True(t, b.dispatch.Dispatch(context.Background(), mod, ".ban <@!123> spamming links"))
	assert.Equal(t, []string{"123:spamming links"}, b.gateway.bans)
	assert.Equal(t, core.SuccessColor, mod.last(t).Color)
}

func TestPlayUnresolvable(t *testing.T) {
	b := newBot(t)
	u := member("u1")
	require.True(t, b.dispatch.Dispatch(context.Background(), u, "!play nothing"))
	assert.Equal(t, core.WarningColor, u.last(t).Color)
	assert.Zero(t, b.deps.Music.Active())
}

func TestPlayNothingPlayable(t *testing.T) {
	b := newBot(t)
	u := member("u1")
	require.True(t, b.dispatch.Dispatch(context.Background(), u, "!play broken"))
	require.Equal(t, 1, u.count())
	assert.Equal(t, core.WarningColor, u.last(t).Color)
	assert.Contains(t, u.last(t).Description, "can be played")
	assert.Zero(t, b.deps.Music.Active())
}

func TestVoteSkipFlow(t *testing.T) {
	b := newBot(t)
	dj := member("dj", "DJ")
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!play one"))
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!play two"))

	// Two listeners: a single vote is half and skips.
	u := member("u1")
	require.True(t, b.dispatch.Dispatch(context.Background(), u, "!voteskip"))
	assert.Contains(t, u.last(t).Description, "Skipping")
	q := b.deps.Music.Status("g1").Queue
	require.Len(t, q, 1)
	assert.Equal(t, "Track two", q[0].Title)
}

func TestPlaylistRoundTrip(t *testing.T) {
	b := newBot(t)
	dj := member("dj", "DJ")
	for _, q := range []string{"one", "two", "three"} {
		require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!play "+q))
	}
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!playlist save Chill"))
	assert.Contains(t, dj.last(t).Description, "3 tracks")

	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!leave"))
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!playlist load chill"))

	var titles []string
	for _, e := range b.deps.Music.Status("g1").Queue {
		titles = append(titles, e.Title)
	}
	// Saved tracks are re-resolved from their source links.
	assert.Equal(t, []string{"Track https://example.com/one", "Track https://example.com/two", "Track https://example.com/three"}, titles)

	other := member("dj2", "DJ")
	require.True(t, b.dispatch.Dispatch(context.Background(), other, "!playlist list"))
	assert.Contains(t, other.last(t).Description, "**chill** · 3 tracks")

	require.True(t, b.dispatch.Dispatch(context.Background(), other, "!playlist delete chill"))
	assert.Equal(t, core.SuccessColor, other.last(t).Color)
	require.True(t, b.dispatch.Dispatch(context.Background(), other, "!playlist delete chill"))
	assert.Equal(t, core.WarningColor, other.last(t).Color)
}

func TestPlaylistChangesRequireDJ(t *testing.T) {
	b := newBot(t)
	dj := member("dj", "DJ")
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!play one"))
	require.True(t, b.dispatch.Dispatch(context.Background(), dj, "!playlist save mix"))
	require.Equal(t, core.SuccessColor, dj.last(t).Color)

	u := member("u1")
	for _, in := range []string{"!playlist delete mix", "!playlist save mine"} {
		require.True(t, b.dispatch.Dispatch(context.Background(), u, in))
		assert.Equal(t, core.ErrorColor, u.last(t).Color, in)
		assert.Contains(t, u.last(t).Description, "DJ", in)
	}

	require.True(t, b.dispatch.Dispatch(context.Background(), u, "!playlist list"))
	desc := u.last(t).Description
	assert.Contains(t, desc, "**mix**")
	assert.NotContains(t, desc, "mine")
}

func TestBroadcastRequiresBotAdmin(t *testing.T) {
	b := newBot(t)
	mod := member("mod")
	mod.userPerms = discordgo.PermissionAdministrator
	require.True(t, b.dispatch.Dispatch(context.Background(), mod, ".broadcast hi all"))
	assert.Equal(t, core.ErrorColor, mod.last(t).Color)
}

func TestBroadcastFlow(t *testing.T) {
	b := newBot(t)
	owner := member("owner")
	require.True(t, b.dispatch.Dispatch(context.Background(), owner, ".broadcast maintenance tonight"))
	staged := owner.last(t).Description

	var hash string
	for _, w := range strings.FieldsFunc(staged, func(r rune) bool { return r == ' ' || r == '`' || r == '\n' }) {
		if len(w) == 10 {
			hash = w
		}
	}
	require.NotEmpty(t, hash, staged)

	require.True(t, b.dispatch.Dispatch(context.Background(), owner, ".broadcastsend "+hash))
	assert.Equal(t, core.SuccessColor, owner.last(t).Color)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.deps.Jobs.Wait(ctx))
	assert.ElementsMatch(t, []string{"news:maintenance tonight", "general:maintenance tonight"}, b.sent.sent)

	require.True(t, b.dispatch.Dispatch(context.Background(), owner, ".broadcastsend "+hash))
	assert.Equal(t, core.WarningColor, owner.last(t).Color)
}

func TestPrefixOverrideAndReload(t *testing.T) {
	b := newBot(t)
	admin := member("mod")
	admin.userPerms = discordgo.PermissionManageGuild

	require.True(t, b.dispatch.Dispatch(context.Background(), admin, ".prefix music ?"))
	assert.False(t, b.dispatch.Dispatch(context.Background(), admin, "!queue"))
	require.True(t, b.dispatch.Dispatch(context.Background(), admin, "?queue"))
	assert.Contains(t, admin.last(t).Description, "empty")

	owner := member("owner")
	require.True(t, b.dispatch.Dispatch(context.Background(), owner, ".reload command queue"))
	assert.Equal(t, core.SuccessColor, owner.last(t).Color)
	require.True(t, b.dispatch.Dispatch(context.Background(), owner, ".reload command nope"))
	assert.Equal(t, core.WarningColor, owner.last(t).Color)
}

func TestUsageShowsGuildPrefix(t *testing.T) {
	b := newBot(t)
	admin := member("mod")
	admin.userPerms = discordgo.PermissionManageGuild

	require.True(t, b.dispatch.Dispatch(context.Background(), admin, ".prefix music ?"))
	require.True(t, b.dispatch.Dispatch(context.Background(), admin, ".prefix administration $"))

	require.True(t, b.dispatch.Dispatch(context.Background(), admin, "?play"))
	assert.Contains(t, admin.last(t).Description, "`?play <url|query>`")
	require.True(t, b.dispatch.Dispatch(context.Background(), admin, "$toggle"))
	assert.Contains(t, admin.last(t).Description, "`$toggle <module> [on|off] [all]`")
}

func TestToggleChannelUnderGuildWideOff(t *testing.T) {
	b := newBot(t)
	admin := member("mod")
	admin.userPerms = discordgo.PermissionManageGuild

	require.True(t, b.dispatch.Dispatch(context.Background(), admin, ".toggle music off all"))
	assert.Equal(t, core.SuccessColor, admin.last(t).Color)

	require.True(t, b.dispatch.Dispatch(context.Background(), admin, ".toggle music on"))
	reply := admin.last(t)
	assert.Equal(t, core.WarningColor, reply.Color)
	assert.Contains(t, reply.Description, "`.toggle music on all`")
	assert.False(t, b.deps.Storage.ModuleEnabled("g1", "c1", "music"))

	before := admin.count()
	b.dispatch.Dispatch(context.Background(), admin, "!queue")
	assert.Equal(t, before, admin.count())

	require.True(t, b.dispatch.Dispatch(context.Background(), admin, ".toggle music on all"))
	assert.True(t, b.deps.Storage.ModuleEnabled("g1", "c1", "music"))
	require.True(t, b.dispatch.Dispatch(context.Background(), admin, "!queue"))
	assert.Contains(t, admin.last(t).Description, "empty")
}

func TestHelpInDirectMessage(t *testing.T) {
	b := newBot(t)
	dm := &fakeContext{channel: "dm", author: "u1", private: true}
	assert.False(t, b.dispatch.Dispatch(context.Background(), dm, "hello there"))
	help := dm.last(t)
	assert.Equal(t, "📖 Available Commands", help.Title)
	assert.Contains(t, help.Description, "`!play <url|query>`")
	assert.Contains(t, help.Description, "`.ban <@user> [reason]`")
}

func TestStats(t *testing.T) {
	b := newBot(t)
	u := member("u1")
	require.True(t, b.dispatch.Dispatch(context.Background(), u, "!stats"))
	desc := u.last(t).Description
	assert.Contains(t, desc, "Commands executed: **1**")
	assert.Contains(t, desc, "Uptime: **1h2m3s**")
}

func TestParseUserID(t *testing.T) {
	for in, want := range map[string]string{"<@123>": "123", "<@!456>": "456", "789": "789"} {
		got, ok := parseUserID(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "@bob", "<#123>"} {
		_, ok := parseUserID(in)
		assert.False(t, ok, in)
	}
}
