package music

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/lmittmann/tint"
)

// State is a guild's position in the playback lifecycle.
type State int

const (
	StateNoConnection State = iota
	StateConnecting
	StatePlaying
	StatePaused
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "no connection"
	}
}

// DefaultVolume is the volume of a newly created guild state.
const DefaultVolume = 100

// guild is one guild's playback state. Every field is guarded by mu.
type guild struct {
	mu          sync.Mutex
	id          string
	textChannel string
	voice       Voice
	state       State
	queue       []Entry
	volume      int
	repeat      bool
	playback    Playback
	// gen identifies the current playback; completions carrying an older
	// generation are ignored.
	gen    uint64
	votes  Tally
	closed bool
	// pending runs after mu is released.
	pending []func()
}

// Manager owns the playback state of every guild.
type Manager struct {
	mu     sync.Mutex
	guilds map[string]*guild

	voice  VoiceGateway
	stream Streamer
	notify Notifier
	log    *slog.Logger

	// Started is called each time an entry starts streaming.
	Started func()
	// Shuffle permutes n elements; it defaults to rand.Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

// NewManager returns a manager with no active guilds.
func NewManager(voice VoiceGateway, stream Streamer, notify Notifier, log *slog.Logger) *Manager {
	return &Manager{
		guilds:  make(map[string]*guild),
		voice:   voice,
		stream:  stream,
		notify:  notify,
		log:     log,
		Shuffle: rand.Shuffle,
	}
}

// lock returns the guild's locked state, creating it when create is set.
// It returns nil when the guild has no state and create is false.
func (m *Manager) lock(guildID string, create bool) *guild {
	for {
		m.mu.Lock()
		g, ok := m.guilds[guildID]
		if !ok {
			if !create {
				m.mu.Unlock()
				return nil
			}
			g = &guild{id: guildID, volume: DefaultVolume}
			m.guilds[guildID] = g
		}
		m.mu.Unlock()

		g.mu.Lock()
		if !g.closed {
			return g
		}
		// Torn down between lookup and lock; look again.
		g.mu.Unlock()
	}
}

// unlock releases g and runs the work queued while it was held.
func (m *Manager) unlock(g *guild) {
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

// PrepareVoice makes sure the bot is connected in req's guild, joining the
// requesting user's voice channel if needed.
func (m *Manager) PrepareVoice(ctx context.Context, req Request) error {
	g := m.lock(req.GuildID, true)
	defer m.unlock(g)

	if g.voice != nil {
		return nil
	}
	channelID, err := m.voice.UserVoiceChannel(req.GuildID, req.UserID)
	if err != nil || channelID == "" {
		m.discard(g)
		return reject(KeyVoiceRequired)
	}

	g.state = StateConnecting
	g.textChannel = req.TextChannelID
	v, err := m.voice.Join(ctx, req.GuildID, channelID)
	if err != nil {
		m.log.Warn("voice join failed", slog.String("guild", req.GuildID), slog.String("channel", channelID), tint.Err(err))
		m.discard(g)
		return reject(KeyMissingPermissions, "channel", channelID)
	}
	g.voice = v
	return nil
}

// discard removes an unconnected guild state. Callers hold g.mu.
func (m *Manager) discard(g *guild) {
	g.closed = true
	g.state = StateNoConnection
	m.mu.Lock()
	if m.guilds[g.id] == g {
		delete(m.guilds, g.id)
	}
	m.mu.Unlock()
}

// Enqueue appends entries to the guild's queue and starts playback when the
// queue was empty. PrepareVoice must have succeeded first.
func (m *Manager) Enqueue(ctx context.Context, req Request, entries ...Entry) error {
	g := m.lock(req.GuildID, false)
	if g == nil {
		return ErrNotConnected
	}
	defer m.unlock(g)
	if g.voice == nil {
		return ErrNotConnected
	}
	if req.TextChannelID != "" {
		g.textChannel = req.TextChannelID
	}
	wasEmpty := len(g.queue) == 0
	g.queue = append(g.queue, entries...)
	if wasEmpty {
		m.advance(ctx, g)
	}
	return nil
}

// advance starts the head of the queue, dropping invalid or unplayable
// entries, and tears the guild down once the queue is empty. Callers hold
// g.mu.
func (m *Manager) advance(ctx context.Context, g *guild) {
	g.votes.Reset()
	for {
		if len(g.queue) == 0 {
			m.teardown(g, true)
			return
		}
		head := g.queue[0]
		if !head.Valid() {
			g.queue = g.queue[1:]
			continue
		}
		pb, err := m.stream.Play(ctx, g.voice, head, g.volume)
		if err != nil {
			m.log.Warn("stream failed, skipping entry",
				slog.String("guild", g.id), slog.String("title", head.Title), tint.Err(err))
			g.queue = g.queue[1:]
			continue
		}
		g.gen++
		g.playback = pb
		g.state = StatePlaying
		if m.Started != nil {
			m.Started()
		}
		guildID, channel := g.id, g.textChannel
		g.pending = append(g.pending, func() { m.notify.NowPlaying(guildID, channel, head) })
		go m.await(g, pb, g.gen)
		return
	}
}

// await waits for pb to finish and advances the queue, unless the playback
// was superseded in the meantime.
func (m *Manager) await(g *guild, pb Playback, gen uint64) {
	<-pb.Done()
	g.mu.Lock()
	defer m.unlock(g)
	if g.closed || g.gen != gen {
		return
	}
	if err := pb.Err(); err != nil {
		m.log.Warn("playback ended with error", slog.String("guild", g.id), tint.Err(err))
	}
	head := g.queue[0]
	g.queue = g.queue[1:]
	if g.repeat {
		g.queue = append(g.queue, head)
	}
	g.playback = nil
	m.advance(context.Background(), g)
}

// teardown disconnects and forgets the guild. Callers hold g.mu.
func (m *Manager) teardown(g *guild, announce bool) {
	g.state = StateDisconnecting
	g.gen++
	if g.playback != nil {
		g.playback.Stop()
		g.playback = nil
	}
	g.queue = nil
	v, guildID, channel := g.voice, g.id, g.textChannel
	g.voice = nil
	m.discard(g)

	g.pending = append(g.pending, func() {
		if announce {
			m.notify.QueueEnded(guildID, channel)
		}
		if v != nil {
			if err := v.Disconnect(); err != nil {
				m.log.Warn("voice disconnect failed", slog.String("guild", guildID), tint.Err(err))
			}
		}
	})
}

// playing locks the guild and checks that something is streaming. On
// success the caller must m.unlock the returned guild.
func (m *Manager) playing(guildID string) (*guild, error) {
	g := m.lock(guildID, false)
	if g == nil {
		return nil, ErrNothingPlaying
	}
	if g.playback == nil {
		m.unlock(g)
		return nil, ErrNothingPlaying
	}
	return g, nil
}

// Pause pauses the current entry.
func (m *Manager) Pause(guildID string) error {
	g, err := m.playing(guildID)
	if err != nil {
		return err
	}
	defer m.unlock(g)
	if g.state == StatePaused {
		return ErrAlreadyPaused
	}
	g.playback.SetPaused(true)
	g.state = StatePaused
	return nil
}

// Resume continues a paused entry. It is refused while the bot is alone in
// its voice channel.
func (m *Manager) Resume(guildID string) error {
	g, err := m.playing(guildID)
	if err != nil {
		return err
	}
	defer m.unlock(g)
	if g.state != StatePaused {
		return ErrNotPaused
	}
	listeners, err := m.voice.Listeners(g.id, g.voice.ChannelID())
	if err != nil {
		return err
	}
	if len(listeners) == 0 {
		return reject(KeyAlone)
	}
	g.playback.SetPaused(false)
	g.state = StatePlaying
	return nil
}

// Skip drops the current entry and starts the next one. A skipped entry is
// never re-queued by repeat.
func (m *Manager) Skip(ctx context.Context, guildID string) (Entry, error) {
	g, err := m.playing(guildID)
	if err != nil {
		return Entry{}, err
	}
	defer m.unlock(g)
	return m.skip(ctx, g), nil
}

// skip stops the head and advances. Callers hold g.mu and have checked
// that something is playing.
func (m *Manager) skip(ctx context.Context, g *guild) Entry {
	g.gen++
	g.playback.Stop()
	g.playback = nil
	head := g.queue[0]
	g.queue = g.queue[1:]
	m.advance(ctx, g)
	return head
}

// VoteSkip registers req.UserID's vote to skip the current entry and skips
// once at least half of the channel's listeners agree. Voters must be in
// the bot's channel and not deafened.
func (m *Manager) VoteSkip(ctx context.Context, req Request) (VoteResult, error) {
	g, err := m.playing(req.GuildID)
	if err != nil {
		return VoteResult{}, err
	}
	defer m.unlock(g)

	channel := g.voice.ChannelID()
	listeners, err := m.voice.Listeners(g.id, channel)
	if err != nil {
		return VoteResult{}, err
	}
	idx := slices.IndexFunc(listeners, func(l Listener) bool { return l.UserID == req.UserID })
	if idx < 0 {
		return VoteResult{}, reject(KeyNotInChannel, "channel", channel)
	}
	if listeners[idx].Deafened {
		return VoteResult{}, reject(KeyDeafened)
	}

	res := g.votes.Register(req.UserID, len(listeners))
	if res.Reached() {
		m.skip(ctx, g)
		res.Skipped = true
	}
	return res, nil
}

// ShuffleQueue reorders every entry after the head.
func (m *Manager) ShuffleQueue(guildID string) error {
	g, err := m.playing(guildID)
	if err != nil {
		return err
	}
	defer m.unlock(g)
	rest := g.queue[1:]
	m.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	return nil
}

// SetVolume clamps v to [0,100], applies it and returns the applied value.
func (m *Manager) SetVolume(guildID string, v int) (int, error) {
	g, err := m.playing(guildID)
	if err != nil {
		return 0, err
	}
	defer m.unlock(g)
	v = min(max(v, 0), 100)
	g.volume = v
	g.playback.SetVolume(v)
	return v, nil
}

// ToggleRepeat flips repeat mode and returns the new setting.
func (m *Manager) ToggleRepeat(guildID string) (bool, error) {
	g := m.lock(guildID, false)
	if g == nil {
		return false, ErrNotConnected
	}
	defer m.unlock(g)
	g.repeat = !g.repeat
	return g.repeat, nil
}

// Leave stops playback, clears the queue and disconnects without the
// end-of-queue notice.
func (m *Manager) Leave(guildID string) error {
	g := m.lock(guildID, false)
	if g == nil {
		return ErrNotConnected
	}
	defer m.unlock(g)
	m.teardown(g, false)
	return nil
}

// Disconnected forgets a guild whose voice connection was closed from
// outside, such as a moderator disconnecting the bot or its channel being
// deleted. Playback stops and the queue is dropped without the end-of-queue
// notice. It reports whether the guild had a connection.
func (m *Manager) Disconnected(guildID string) bool {
	g := m.lock(guildID, false)
	if g == nil {
		return false
	}
	defer m.unlock(g)
	if g.voice == nil {
		return false
	}
	// The connection is already gone; teardown must not disconnect it.
	g.voice = nil
	m.teardown(g, false)
	return true
}

// LeaveAll disconnects every guild.
func (m *Manager) LeaveAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.guilds))
	for id := range m.guilds {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Leave(id)
	}
}

// Status is a snapshot of one guild's playback.
type Status struct {
	State   State
	Queue   []Entry
	Volume  int
	Repeat  bool
	Votes   int
	Channel string
}

// Status returns the guild's playback snapshot.
func (m *Manager) Status(guildID string) Status {
	g := m.lock(guildID, false)
	if g == nil {
		return Status{State: StateNoConnection, Volume: DefaultVolume}
	}
	defer m.unlock(g)
	st := Status{
		State:  g.state,
		Queue:  slices.Clone(g.queue),
		Volume: g.volume,
		Repeat: g.repeat,
		Votes:  g.votes.Len(),
	}
	if g.voice != nil {
		st.Channel = g.voice.ChannelID()
	}
	return st
}

// Active returns the number of guilds holding a voice connection.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.guilds)
}
