package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/core"
)

// messageContext adapts a created message to core.Context.
type messageContext struct {
	b *Bot
	m *discordgo.MessageCreate
}

var _ core.Context = (*messageContext)(nil)

func (c *messageContext) GuildID() string   { return c.m.GuildID }
func (c *messageContext) ChannelID() string { return c.m.ChannelID }
func (c *messageContext) AuthorID() string  { return c.m.Author.ID }
func (c *messageContext) MessageID() string { return c.m.ID }
func (c *messageContext) IsPrivate() bool   { return c.m.GuildID == "" }

func (c *messageContext) AuthorName() string {
	if c.m.Member != nil && c.m.Member.Nick != "" {
		return c.m.Member.Nick
	}
	if c.m.Author.GlobalName != "" {
		return c.m.Author.GlobalName
	}
	return c.m.Author.Username
}

func (c *messageContext) UserPermissions() (int64, error) {
	return channelPermissions(c.b.s, c.m.Author.ID, c.m.ChannelID)
}

func (c *messageContext) BotPermissions() (int64, error) {
	return channelPermissions(c.b.s, c.b.s.State.User.ID, c.m.ChannelID)
}

func (c *messageContext) RoleNames() ([]string, error) {
	if c.IsPrivate() {
		return nil, nil
	}
	var ids []string
	if c.m.Member != nil {
		ids = c.m.Member.Roles
	} else {
		mem, err := member(c.b.s, c.m.GuildID, c.m.Author.ID)
		if err != nil {
			return nil, err
		}
		ids = mem.Roles
	}
	return roleNames(c.b.s, c.m.GuildID, ids)
}

func (c *messageContext) Reply(embed *discordgo.MessageEmbed) (string, error) {
	var id string
	err := c.b.rest(func() error {
		msg, err := c.b.s.ChannelMessageSendEmbed(c.m.ChannelID, embed)
		if err != nil {
			return err
		}
		id = msg.ID
		return nil
	})
	return id, err
}

func (c *messageContext) DeleteMessage(messageID string) error {
	return c.b.rest(func() error {
		return c.b.s.ChannelMessageDelete(c.m.ChannelID, messageID)
	})
}
