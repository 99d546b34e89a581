package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"github.com/keshon/jukebox/internal/commands"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/music"
)

var _ commands.Gateway = (*Bot)(nil)

// Ban bans userID from guildID without deleting their messages.
func (b *Bot) Ban(guildID, userID, reason string) error {
	return b.rest(func() error {
		return permanent(b.s.GuildBanCreateWithReason(guildID, userID, reason, 0))
	})
}

// Kick removes userID from guildID.
func (b *Bot) Kick(guildID, userID, reason string) error {
	return b.rest(func() error {
		return permanent(b.s.GuildMemberDeleteWithReason(guildID, userID, reason))
	})
}

// SetStatus sets the bot's playing status. An empty text clears it.
func (b *Bot) SetStatus(text string) error {
	return b.s.UpdateGameStatus(0, text)
}

// Latency is the last heartbeat round trip.
func (b *Bot) Latency() time.Duration {
	return b.s.HeartbeatLatency()
}

// Send posts a broadcast body to channelID. Retries are left to the caller.
func (b *Bot) Send(_ context.Context, channelID, body string) error {
	_, err := b.s.ChannelMessageSendEmbed(channelID, core.Embed(core.EmbedColor, "📣 Announcement", body))
	if err != nil {
		return permanent(fmt.Errorf("send to %s: %w", channelID, err))
	}
	return nil
}

// Notifier returns the music.Notifier posting to guild text channels.
func (b *Bot) Notifier() music.Notifier { return notifier{b} }

type notifier struct{ b *Bot }

func (n notifier) NowPlaying(guildID, channelID string, e music.Entry) {
	n.post(guildID, channelID, commands.NowPlayingEmbed(e))
}

func (n notifier) QueueEnded(guildID, channelID string) {
	n.post(guildID, channelID, core.Embed(core.EmbedColor, "", "⏹️ Queue finished, leaving the voice channel."))
}

func (n notifier) post(guildID, channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	err := n.b.rest(func() error {
		_, err := n.b.s.ChannelMessageSendEmbed(channelID, embed)
		return permanent(err)
	})
	if err != nil {
		n.b.log.Warn("music notice failed", slog.String("guild", guildID), slog.String("channel", channelID), tint.Err(err))
	}
}
