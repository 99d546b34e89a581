// Package discord connects the command core and the music manager to a
// discordgo session.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

// Intents the bot identifies with.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Drainer is the music manager as seen by shutdown.
type Drainer interface {
	Active() int
	LeaveAll()
}

// Music is the music manager as seen by the gateway.
type Music interface {
	Drainer
	Disconnected(guildID string) bool
}

// Options configures New.
type Options struct {
	Token string
	// ShutdownTimeout bounds how long Serve waits for playback to finish.
	ShutdownTimeout time.Duration
	Limiter         *retrylimit.AdaptiveLimiter
	Retry           retrylimit.Config
	Log             *slog.Logger
}

// Bot owns the gateway session.
type Bot struct {
	s       *discordgo.Session
	opts    Options
	log     *slog.Logger
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.Config

	ctx      context.Context
	dispatch atomic.Pointer[core.Dispatcher]
	music    atomic.Value // Music

	mu        sync.RWMutex
	accepting bool
	inflight  sync.WaitGroup
}

// New creates a session without connecting it.
func New(opts Options) (*Bot, error) {
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.Identify.Intents = Intents
	b := newBot(s, opts)
	s.AddHandler(b.onReady)
	s.AddHandler(b.onMessageCreate)
	s.AddHandler(b.onVoiceStateUpdate)
	return b, nil
}

func newBot(s *discordgo.Session, opts Options) *Bot {
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	retry := opts.Retry
	if retry.Status == nil {
		retry.Status = RESTStatus
	}
	if retry.Log == nil {
		retry.Log = opts.Log
	}
	return &Bot{
		s:       s,
		opts:    opts,
		log:     opts.Log,
		limiter: opts.Limiter,
		retry:   retry,
		ctx:     context.Background(),
	}
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session { return b.s }

// Serve connects, routes messages to d until ctx is done and then shuts
// down: new commands are refused, in-flight ones finish, and playback is
// given ShutdownTimeout to drain before every guild is disconnected.
func (b *Bot) Serve(ctx context.Context, d *core.Dispatcher, music Music) error {
	b.ctx = ctx
	b.dispatch.Store(d)
	if music != nil {
		b.music.Store(music)
	}
	if err := b.s.Open(); err != nil {
		return fmt.Errorf("open gateway session: %w", err)
	}
	b.setAccepting(true)

	<-ctx.Done()
	b.log.Info("shutdown signal received")
	b.setAccepting(false)
	b.inflight.Wait()
	if music != nil {
		drain(music, b.opts.ShutdownTimeout, time.Second, b.log)
	}
	if err := b.s.Close(); err != nil {
		b.log.Warn("close gateway session", tint.Err(err))
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("connected", slog.String("user", r.User.Username), slog.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	d := b.dispatch.Load()
	if d == nil || !b.enter() {
		return
	}
	defer b.inflight.Done()
	d.Dispatch(b.ctx, &messageContext{b: b, m: m}, m.Content)
}

// onVoiceStateUpdate drops the guild's playback when the bot's own voice
// connection is closed by someone else.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, u *discordgo.VoiceStateUpdate) {
	if u.VoiceState == nil || u.ChannelID != "" || s.State.User == nil || u.UserID != s.State.User.ID {
		return
	}
	m, ok := b.music.Load().(Music)
	if !ok || !m.Disconnected(u.GuildID) {
		return
	}
	b.log.Info("voice connection closed externally", slog.String("guild", u.GuildID))
	closeVoice(s, u.GuildID)
}

// closeVoice releases a voice connection Discord already ended, without
// asking to leave again.
func closeVoice(s *discordgo.Session, guildID string) {
	s.RLock()
	vc := s.VoiceConnections[guildID]
	s.RUnlock()
	if vc == nil {
		return
	}
	vc.Close()
	s.Lock()
	if s.VoiceConnections[guildID] == vc {
		delete(s.VoiceConnections, guildID)
	}
	s.Unlock()
}

func (b *Bot) setAccepting(v bool) {
	b.mu.Lock()
	b.accepting = v
	b.mu.Unlock()
}

// enter registers an in-flight command unless shutdown has begun.
func (b *Bot) enter() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.accepting {
		b.inflight.Add(1)
	}
	return b.accepting
}

// rest calls fn through the adaptive limiter with retries. Replies and
// notices still go out while shutting down.
func (b *Bot) rest(fn func() error) error {
	return retrylimit.Do(context.WithoutCancel(b.ctx), b.limiter, b.retry, fn)
}

// drain polls until nothing plays or timeout passes, then leaves every
// voice channel.
func drain(m Drainer, timeout, interval time.Duration, log *slog.Logger) {
	if n := m.Active(); n > 0 {
		log.Info("waiting for playback to finish", slog.Int("guilds", n), slog.Duration("timeout", timeout))
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		tick := time.NewTicker(interval)
		defer tick.Stop()
	wait:
		for m.Active() > 0 {
			select {
			case <-tick.C:
			case <-deadline.C:
				log.Warn("shutdown timeout reached, disconnecting", slog.Int("guilds", m.Active()))
				break wait
			}
		}
	}
	m.LeaveAll()
}
