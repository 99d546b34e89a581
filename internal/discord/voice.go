package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/stream"
)

// Voice returns the bot's music.VoiceGateway.
func (b *Bot) Voice() music.VoiceGateway { return voiceGateway{b} }

type voiceGateway struct{ b *Bot }

func (v voiceGateway) UserVoiceChannel(guildID, userID string) (string, error) {
	vs, err := v.b.s.State.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("voice state of %s: %w", userID, err)
	}
	return vs.ChannelID, nil
}

func (v voiceGateway) Join(ctx context.Context, guildID, channelID string) (music.Voice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := v.b.s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	return voiceConn{vc}, nil
}

func (v voiceGateway) Listeners(guildID, channelID string) ([]music.Listener, error) {
	g, err := v.b.s.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	self := ""
	if v.b.s.State.User != nil {
		self = v.b.s.State.User.ID
	}
	// State.Member locks too, so bots are filtered after the snapshot.
	v.b.s.State.RLock()
	states := make([]discordgo.VoiceState, 0, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != self {
			states = append(states, *vs)
		}
	}
	v.b.s.State.RUnlock()

	var out []music.Listener
	for i := range states {
		if v.isBot(guildID, &states[i]) {
			continue
		}
		out = append(out, music.Listener{UserID: states[i].UserID, Deafened: states[i].Deaf})
	}
	return out, nil
}

func (v voiceGateway) isBot(guildID string, vs *discordgo.VoiceState) bool {
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	if m, err := v.b.s.State.Member(guildID, vs.UserID); err == nil && m.User != nil {
		return m.User.Bot
	}
	return false
}

// voiceConn is a discordgo voice connection as a stream.Sink.
type voiceConn struct {
	vc *discordgo.VoiceConnection
}

var _ stream.Sink = voiceConn{}

func (c voiceConn) ChannelID() string            { return c.vc.ChannelID }
func (c voiceConn) Disconnect() error            { return c.vc.Disconnect() }
func (c voiceConn) Speaking(speaking bool) error { return c.vc.Speaking(speaking) }
func (c voiceConn) Frames() chan<- []byte        { return c.vc.OpusSend }
