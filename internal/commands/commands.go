// Package commands holds the command descriptors and their handlers,
// grouped by category.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/broadcast"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

// Gateway is what administration commands need from the chat platform.
type Gateway interface {
	Ban(guildID, userID, reason string) error
	Kick(guildID, userID, reason string) error
	SetStatus(text string) error
	Latency() time.Duration
}

// TrackResolver turns user input into queue entries.
type TrackResolver interface {
	Resolve(ctx context.Context, input, requesterID string) ([]music.Entry, error)
}

// Deps are the services command handlers use.
type Deps struct {
	Config    *config.Config
	Registry  *core.Registry
	Storage   *storage.Storage
	Playlists *storage.Playlists
	Music     *music.Manager
	Tracks    TrackResolver
	Broadcast *broadcast.Broadcaster
	Gateway   Gateway
	Jobs      *jobmgr.Manager
	Log       *slog.Logger

	// Executed returns the number of commands run since start.
	Executed func() uint64
	// Started is when the process came up.
	Started time.Time
	Now     func() time.Time
}

// Factories returns every command factory.
func Factories(d *Deps) []core.Factory {
	var out []core.Factory
	out = append(out, utilityCommands(d)...)
	out = append(out, musicCommands(d)...)
	out = append(out, adminCommands(d)...)
	return out
}

// handler adapts a method value to core.Handler.
func handler(f func(ctx context.Context, c core.Context, args []string) error) core.Handler {
	return core.HandlerFunc(f)
}

// replied drops the message id of a reply.
func replied(_ string, err error) error {
	return err
}

// usage warns with the command's usage line.
func usage(c core.Context, prefix, u string) error {
	return replied(core.Warn(c, "Usage: `%s%s`", prefix, u))
}

// prefixIn returns the category prefix in effect where c was sent.
func prefixIn(d *Deps, c core.Context, category string) string {
	if !c.IsPrivate() && d.Storage != nil {
		if o := d.Storage.Prefixes(c.GuildID())[category]; o != "" {
			return o
		}
	}
	return d.Config.Prefix(category)
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// parseUserID accepts a mention or a raw snowflake.
func parseUserID(s string) (string, bool) {
	if m := mentionPattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if s != "" && strings.Trim(s, "0123456789") == "" {
		return s, true
	}
	return "", false
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
