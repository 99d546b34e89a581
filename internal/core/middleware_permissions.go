package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/pkg/cmd"
)

// Permissions maps descriptor permission names to gateway permission bits.
var Permissions = map[string]int64{
	"create_instant_invite": discordgo.PermissionCreateInstantInvite,
	"kick_members":          discordgo.PermissionKickMembers,
	"ban_members":           discordgo.PermissionBanMembers,
	"administrator":         discordgo.PermissionAdministrator,
	"manage_channels":       discordgo.PermissionManageChannels,
	"manage_guild":          discordgo.PermissionManageGuild,
	"add_reactions":         discordgo.PermissionAddReactions,
	"view_audit_log":        discordgo.PermissionViewAuditLogs,
	"view_channel":          discordgo.PermissionViewChannel,
	"send_messages":         discordgo.PermissionSendMessages,
	"manage_messages":       discordgo.PermissionManageMessages,
	"embed_links":           discordgo.PermissionEmbedLinks,
	"attach_files":          discordgo.PermissionAttachFiles,
	"read_message_history":  discordgo.PermissionReadMessageHistory,
	"mention_everyone":      discordgo.PermissionMentionEveryone,
	"connect":               discordgo.PermissionVoiceConnect,
	"speak":                 discordgo.PermissionVoiceSpeak,
	"mute_members":          discordgo.PermissionVoiceMuteMembers,
	"deafen_members":        discordgo.PermissionVoiceDeafenMembers,
	"move_members":          discordgo.PermissionVoiceMoveMembers,
	"change_nickname":       discordgo.PermissionChangeNickname,
	"manage_nicknames":      discordgo.PermissionManageNicknames,
	"manage_roles":          discordgo.PermissionManageRoles,
	"manage_webhooks":       discordgo.PermissionManageWebhooks,
	"moderate_members":      discordgo.PermissionModerateMembers,
}

// PermissionNames are human-readable permission labels.
var PermissionNames = map[int64]string{
	discordgo.PermissionCreateInstantInvite: "Create Instant Invite",
	discordgo.PermissionKickMembers:         "Kick Members",
	discordgo.PermissionBanMembers:          "Ban Members",
	discordgo.PermissionAdministrator:       "Administrator",
	discordgo.PermissionManageChannels:      "Manage Channels",
	discordgo.PermissionManageGuild:         "Manage Server",
	discordgo.PermissionAddReactions:        "Add Reactions",
	discordgo.PermissionViewAuditLogs:       "View Audit Logs",
	discordgo.PermissionViewChannel:         "View Channel",
	discordgo.PermissionSendMessages:        "Send Messages",
	discordgo.PermissionManageMessages:      "Manage Messages",
	discordgo.PermissionEmbedLinks:          "Embed Links",
	discordgo.PermissionAttachFiles:         "Attach Files",
	discordgo.PermissionReadMessageHistory:  "Read Message History",
	discordgo.PermissionMentionEveryone:     "Mention Everyone",
	discordgo.PermissionVoiceConnect:        "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:          "Speak",
	discordgo.PermissionVoiceMuteMembers:    "Mute Members",
	discordgo.PermissionVoiceDeafenMembers:  "Deafen Members",
	discordgo.PermissionVoiceMoveMembers:    "Move Members",
	discordgo.PermissionChangeNickname:      "Change Nickname",
	discordgo.PermissionManageNicknames:     "Manage Nicknames",
	discordgo.PermissionManageRoles:         "Manage Roles",
	discordgo.PermissionManageWebhooks:      "Manage Webhooks",
	discordgo.PermissionModerateMembers:     "Moderate Members",
}

// PermissionName returns the label for a permission bit.
func PermissionName(p int64) string {
	if name, ok := PermissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", p)
}

// requirePermission checks named permissions for the invoking user and,
// when bot is set, first for the bot itself. Direct messages always pass.
type requirePermission struct {
	g   *Guards
	bot bool
}

func (requirePermission) Validate(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one permission is required")
	}
	for _, a := range args {
		if _, ok := Permissions[strings.ToLower(a)]; !ok {
			return fmt.Errorf("unknown permission %q", a)
		}
	}
	return nil
}

func (m requirePermission) Handle(ctx context.Context, inv *cmd.Invocation, next cmd.Next, names ...string) error {
	c := FromInvocation(inv)
	if c == nil {
		return errNoContext
	}
	if c.IsPrivate() {
		return next(ctx, inv)
	}

	if m.bot {
		perms, err := c.BotPermissions()
		if err != nil {
			return fmt.Errorf("get bot permissions: %w", err)
		}
		if missing := missingPermissions(perms, names); len(missing) > 0 {
			_, err := Fail(c, "I don't have permission to do that. I need: `%s`", strings.Join(missing, "`, `"))
			return err
		}
	}

	perms, err := c.UserPermissions()
	if err != nil {
		return fmt.Errorf("get user permissions: %w", err)
	}
	if missing := missingPermissions(perms, names); len(missing) > 0 {
		_, err := Warn(c, "You don't have permission to use this command. You need: `%s`", strings.Join(missing, "`, `"))
		return err
	}
	return next(ctx, inv)
}

// missingPermissions lists the labels of names not granted by perms.
// Administrator grants everything.
func missingPermissions(perms int64, names []string) []string {
	if perms&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var missing []string
	for _, n := range names {
		p := Permissions[strings.ToLower(n)]
		if perms&p != p {
			missing = append(missing, PermissionName(p))
		}
	}
	return missing
}
