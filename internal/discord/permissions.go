package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// guild returns a guild from state, falling back to the REST API.
func guild(s *discordgo.Session, guildID string) (*discordgo.Guild, error) {
	g, err := s.State.Guild(guildID)
	if err == nil && g != nil {
		return g, nil
	}
	g, err = s.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("get guild %s: %w", guildID, err)
	}
	return g, nil
}

// member returns a guild member from state, falling back to the REST API.
func member(s *discordgo.Session, guildID, userID string) (*discordgo.Member, error) {
	m, err := s.State.Member(guildID, userID)
	if err == nil && m != nil {
		return m, nil
	}
	m, err = s.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", userID, err)
	}
	return m, nil
}

// channelPermissions computes userID's effective permissions in a channel.
// Guild owners and administrators hold every permission.
func channelPermissions(s *discordgo.Session, userID, channelID string) (int64, error) {
	if p, err := s.State.UserChannelPermissions(userID, channelID); err == nil {
		return p, nil
	}
	p, err := s.UserChannelPermissions(userID, channelID)
	if err != nil {
		return 0, fmt.Errorf("permissions of %s in %s: %w", userID, channelID, err)
	}
	return p, nil
}

// roleNames resolves role ids to names. Unknown ids are skipped.
func roleNames(s *discordgo.Session, guildID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var fetched []*discordgo.Role
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, err := s.State.Role(guildID, id); err == nil && r != nil {
			names = append(names, r.Name)
			continue
		}
		if fetched == nil {
			roles, err := s.GuildRoles(guildID)
			if err != nil {
				return nil, fmt.Errorf("get roles of %s: %w", guildID, err)
			}
			fetched = roles
		}
		for _, r := range fetched {
			if r.ID == id {
				names = append(names, r.Name)
				break
			}
		}
	}
	return names, nil
}
