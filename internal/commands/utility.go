package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
)

func utilityCommands(d *Deps) []core.Factory {
	u := &utilityHandlers{d: d}
	return []core.Factory{
		func() *core.Descriptor {
			return &core.Descriptor{
				Name:        "ping",
				Category:    config.CategoryUtility,
				Description: "Pong!",
				Usage:       "ping",
				Triggers:    []string{"ping"},
				Middleware:  []string{"throttle.channel:2,5"},
				AllowDM:     true,
				Handler:     handler(u.ping),
			}
		},
		func() *core.Descriptor {
			return &core.Descriptor{
				Name:        "help",
				Category:    config.CategoryUtility,
				Description: "Show a list of available commands",
				Usage:       "help",
				Triggers:    []string{"help", "commands"},
				Middleware:  []string{"throttle.user:2,10"},
				AllowDM:     true,
				Handler:     handler(u.help),
			}
		},
		func() *core.Descriptor {
			return &core.Descriptor{
				Name:        "stats",
				Category:    config.CategoryUtility,
				Description: "Show bot statistics",
				Usage:       "stats",
				Triggers:    []string{"stats", "about"},
				AllowDM:     true,
				Handler:     handler(u.stats),
			}
		},
	}
}

type utilityHandlers struct {
	d *Deps
}

func (u *utilityHandlers) ping(_ context.Context, c core.Context, _ []string) error {
	return replied(core.Info(c, "🏓 Pong! Response time: `%dms`", u.d.Gateway.Latency().Milliseconds()))
}

func (u *utilityHandlers) help(_ context.Context, c core.Context, _ []string) error {
	_, err := c.Reply(HelpEmbed(u.d, c))
	return err
}

func (u *utilityHandlers) stats(_ context.Context, c core.Context, _ []string) error {
	uptime := u.d.Now().Sub(u.d.Started).Truncate(time.Second)
	desc := fmt.Sprintf("Commands executed: **%d**\nGuilds playing music: **%d**\nUptime: **%s**",
		u.d.Executed(), u.d.Music.Active(), uptime)
	_, err := c.Reply(core.Embed(core.EmbedColor, "📊 Stats", desc))
	return err
}

// Help answers unknown commands in direct messages.
func Help(d *Deps) core.HelpFunc {
	return func(c core.Context) error {
		_, err := c.Reply(HelpEmbed(d, c))
		return err
	}
}

// HelpEmbed lists every command by category, with the prefixes in effect
// where c was sent.
func HelpEmbed(d *Deps, c core.Context) *discordgo.MessageEmbed {
	byCategory := map[string][]*core.Descriptor{}
	for _, e := range d.Registry.Entries() {
		desc := e.Descriptor()
		byCategory[desc.Category] = append(byCategory[desc.Category], desc)
	}
	categories := slices.SortedFunc(maps.Keys(byCategory), func(a, b string) int {
		return config.CategoryWeights[a] - config.CategoryWeights[b]
	})

	var sb strings.Builder
	for _, cat := range categories {
		prefix := prefixIn(d, c, cat)
		title := config.CategoryTitles[cat]
		if title == "" {
			title = cat
		}
		fmt.Fprintf(&sb, "**%s**\n", title)
		for _, desc := range byCategory[cat] {
			fmt.Fprintf(&sb, "`%s%s` - %s\n", prefix, desc.Usage, desc.Description)
		}
		sb.WriteString("\n")
	}
	return core.Embed(core.EmbedColor, "📖 Available Commands", sb.String())
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
