package docs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/pkg/cmd"
)

func TestMarkdown(t *testing.T) {
	cfg := &config.Config{
		DefaultPrefix:    "!",
		CategoryPrefixes: map[string]string{config.CategoryAdministration: "."},
	}
	nop := core.HandlerFunc(func(context.Context, core.Context, []string) error { return nil })
	reg := core.NewRegistry(cmd.NewRegistry(), cfg.Prefix, nil, logging.Discard())
	require.NoError(t, reg.Register(
		func() *core.Descriptor {
			return &core.Descriptor{Name: "ban", Category: config.CategoryAdministration, Description: "Ban a member",
				Usage: "ban <@user> [reason]", Triggers: []string{"ban"}, Handler: nop}
		},
		func() *core.Descriptor {
			return &core.Descriptor{Name: "play", Category: config.CategoryMusic, Description: "Queue a track",
				Usage: "play <url|query>", Triggers: []string{"play", "p"}, Handler: nop}
		},
	))

	var sb strings.Builder
	require.NoError(t, Markdown(&sb, cfg, reg.Entries()))
	out := sb.String()

	assert.Contains(t, out, "### "+config.CategoryTitles[config.CategoryMusic])
	assert.Contains(t, out, "- **`!play <url|query>`** - Queue a track (aliases: !p)")
	assert.Contains(t, out, "- **`.ban <@user> [reason]`** - Ban a member\n")

	music := strings.Index(out, config.CategoryTitles[config.CategoryMusic])
	admin := strings.Index(out, config.CategoryTitles[config.CategoryAdministration])
	assert.Less(t, music, admin)
}
