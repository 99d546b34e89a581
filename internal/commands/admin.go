package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/storage"
)

// historyShown is how many records the history command lists.
const historyShown = 10

func adminCommands(d *Deps) []core.Factory {
	a := &adminHandlers{d: d}
	desc := func(name, description, usage string, h func(context.Context, core.Context, []string) error, mw ...string) core.Factory {
		return func() *core.Descriptor {
			return &core.Descriptor{
				Name:        name,
				Category:    config.CategoryAdministration,
				Description: description,
				Usage:       usage,
				Triggers:    []string{name},
				Middleware:  mw,
				Handler:     handler(h),
			}
		}
	}
	owner := []string{core.MiddlewareIsBotAdmin, core.MiddlewareHistory}
	manage := []string{core.MiddlewareRequireUser + ":manage_guild", core.MiddlewareHistory}
	return []core.Factory{
		desc("ban", "Ban a member", "ban <@user> [reason]", a.ban,
			core.MiddlewareRequire+":ban_members", "throttle.guild:5,60", core.MiddlewareHistory),
		desc("kick", "Kick a member", "kick <@user> [reason]", a.kick,
			core.MiddlewareRequire+":kick_members", "throttle.guild:5,60", core.MiddlewareHistory),
		desc("prefix", "Show or override a category prefix", "prefix <category> [prefix|reset]", a.prefixCmd, manage...),
		desc("toggle", "Enable or disable a module here or everywhere", "toggle <module> [on|off] [all]", a.toggle, manage...),
		desc("alias", "Map a word to a command", "alias <token> [command...]", a.alias, manage...),
		desc("announce", "Set this channel as the broadcast destination", "announce", a.announce, manage...),
		desc("history", "Show recent commands", "history", a.history, core.MiddlewareRequireUser+":manage_guild"),
		desc("reload", "Reload a command or the settings database", "reload command <name> | db", a.reload, owner...),
		desc("setstatus", "Set or clear the bot's status", "setstatus [text]", a.setStatus, owner...),
		desc("broadcast", "Stage a message for every guild", "broadcast <message>", a.broadcast, owner...),
		desc("broadcastsend", "Send a staged broadcast", "broadcastsend <hash>", a.broadcastSend, owner...),
		desc("jobs", "Show background jobs", "jobs", a.jobs, core.MiddlewareIsBotAdmin),
	}
}

type adminHandlers struct {
	d *Deps
}

func (a *adminHandlers) usage(c core.Context, u string) error {
	return usage(c, prefixIn(a.d, c, config.CategoryAdministration), u)
}

func (a *adminHandlers) ban(_ context.Context, c core.Context, args []string) error {
	return a.moderate(c, args, "ban <@user> [reason]", "banned", a.d.Gateway.Ban)
}

func (a *adminHandlers) kick(_ context.Context, c core.Context, args []string) error {
	return a.moderate(c, args, "kick <@user> [reason]", "kicked", a.d.Gateway.Kick)
}

func (a *adminHandlers) moderate(c core.Context, args []string, u, verb string, act func(guildID, userID, reason string) error) error {
	if len(args) == 0 {
		return a.usage(c, u)
	}
	userID, ok := parseUserID(args[0])
	if !ok {
		return replied(core.Warn(c, "`%s` isn't a member mention.", args[0]))
	}
	if userID == c.AuthorID() {
		return replied(core.Warn(c, "You can't do that to yourself."))
	}
	reason := strings.Join(args[1:], " ")
	if err := act(c.GuildID(), userID, reason); err != nil {
		return fmt.Errorf("%s %s: %w", verb, userID, err)
	}
	if reason == "" {
		return replied(core.Success(c, "<@%s> was %s.", userID, verb))
	}
	return replied(core.Success(c, "<@%s> was %s: %s", userID, verb, reason))
}

func (a *adminHandlers) prefixCmd(_ context.Context, c core.Context, args []string) error {
	if len(args) == 0 {
		return a.usage(c, "prefix <category> [prefix|reset]")
	}
	category := strings.ToLower(args[0])
	if _, ok := config.CategoryTitles[category]; !ok {
		return replied(core.Warn(c, "Unknown category `%s`.", category))
	}
	if len(args) == 1 {
		return replied(core.Info(c, "The %s prefix is `%s`.", category, prefixIn(a.d, c, category)))
	}
	p := args[1]
	if strings.EqualFold(p, "reset") {
		p = ""
	}
	if err := a.d.Storage.SetPrefix(c.GuildID(), category, p); err != nil {
		return err
	}
	if p == "" {
		return replied(core.Success(c, "The %s prefix is back to `%s`.", category, a.d.Config.Prefix(category)))
	}
	return replied(core.Success(c, "The %s prefix is now `%s`.", category, p))
}

func (a *adminHandlers) toggle(_ context.Context, c core.Context, args []string) error {
	const u = "toggle <module> [on|off] [all]"
	if len(args) == 0 {
		return a.usage(c, u)
	}
	module := strings.ToLower(args[0])
	if _, ok := config.CategoryTitles[module]; !ok {
		return replied(core.Warn(c, "Unknown module `%s`.", module))
	}
	if module == config.CategoryAdministration {
		return replied(core.Warn(c, "The administration module can't be disabled."))
	}

	enabled := !a.d.Storage.ModuleEnabled(c.GuildID(), c.ChannelID(), module)
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return a.usage(c, u)
		}
	}
	scope, where := c.ChannelID(), "in <#"+c.ChannelID()+">"
	if len(args) > 2 && strings.EqualFold(args[2], storage.AllChannels) {
		scope, where = storage.AllChannels, "everywhere"
	}
	// A guild-wide off outranks any channel setting.
	if enabled && scope != storage.AllChannels {
		if on, set := a.d.Storage.ModuleSetting(c.GuildID(), storage.AllChannels, module); set && !on {
			return replied(core.Warn(c, "The %s module is disabled everywhere. Use `%stoggle %s on all` to turn it back on.",
				module, prefixIn(a.d, c, config.CategoryAdministration), module))
		}
	}
	if err := a.d.Storage.SetModule(c.GuildID(), scope, module, enabled); err != nil {
		return err
	}
	return replied(core.Success(c, "The %s module is %s %s.", module, map[bool]string{true: "enabled", false: "disabled"}[enabled], where))
}

func (a *adminHandlers) alias(_ context.Context, c core.Context, args []string) error {
	if len(args) == 0 {
		aliases := a.d.Storage.Aliases(c.GuildID())
		if len(aliases) == 0 {
			return replied(core.Info(c, "No aliases defined."))
		}
		var sb strings.Builder
		for _, k := range sortedKeys(aliases) {
			fmt.Fprintf(&sb, "`%s` → `%s`\n", k, aliases[k])
		}
		_, err := c.Reply(core.Embed(core.EmbedColor, "Aliases", sb.String()))
		return err
	}
	token := strings.ToLower(args[0])
	expansion := strings.Join(args[1:], " ")
	if err := a.d.Storage.SetAlias(c.GuildID(), token, expansion); err != nil {
		return err
	}
	if expansion == "" {
		return replied(core.Success(c, "Removed alias `%s`.", token))
	}
	return replied(core.Success(c, "`%s` now runs `%s`.", token, expansion))
}

func (a *adminHandlers) announce(_ context.Context, c core.Context, _ []string) error {
	if err := a.d.Storage.SetAnnounceChannel(c.GuildID(), c.ChannelID()); err != nil {
		return err
	}
	return replied(core.Success(c, "Broadcasts will be posted in <#%s>.", c.ChannelID()))
}

func (a *adminHandlers) history(_ context.Context, c core.Context, _ []string) error {
	records, err := a.d.Storage.CommandHistory(c.GuildID())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return replied(core.Info(c, "No commands recorded yet."))
	}
	var sb strings.Builder
	for _, r := range records[max(0, len(records)-historyShown):] {
		fmt.Fprintf(&sb, "<t:%d:R> **%s** `%s %s` in <#%s>\n",
			r.Datetime.Unix(), r.Username, r.Command, strings.Join(r.Args, " "), r.ChannelID)
	}
	_, err = c.Reply(core.Embed(core.EmbedColor, "🗒️ Recent commands", sb.String()))
	return err
}

func (a *adminHandlers) jobs(_ context.Context, c core.Context, _ []string) error {
	return replied(core.Info(c, "%s", a.d.Jobs.Status()))
}
