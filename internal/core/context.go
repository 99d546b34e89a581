package core

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/pkg/cmd"
)

// Context is what the command core sees of an inbound gateway message.
// The discord package adapts *discordgo.MessageCreate to it; tests use fakes.
type Context interface {
	GuildID() string
	ChannelID() string
	AuthorID() string
	AuthorName() string
	MessageID() string
	IsPrivate() bool

	// UserPermissions returns the author's effective permissions in the channel.
	UserPermissions() (int64, error)
	// BotPermissions returns the bot's effective permissions in the channel.
	BotPermissions() (int64, error)
	// RoleNames returns the names of the author's roles in the guild.
	RoleNames() ([]string, error)

	// Reply posts embed to the invoking channel and returns the new message id.
	Reply(embed *discordgo.MessageEmbed) (string, error)
	// DeleteMessage removes a message from the invoking channel.
	DeleteMessage(messageID string) error
}

// FromInvocation returns the Context carried by inv, or nil.
func FromInvocation(inv *cmd.Invocation) Context {
	c, _ := inv.Data.(Context)
	return c
}
