package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/keshon/jukebox/pkg/cmd"
)

// Settings is the per-guild configuration the dispatcher consults.
type Settings interface {
	// Prefixes returns per-category prefix overrides.
	Prefixes(guildID string) map[string]string
	// Aliases maps a first token to the command text it expands to.
	Aliases(guildID string) map[string]string
	// ModuleEnabled reports whether a category may run in the channel.
	ModuleEnabled(guildID, channelID, module string) bool
}

// HelpFunc renders the reply to an unknown command in a direct message.
type HelpFunc func(c Context) error

// Dispatcher turns raw message text into a command invocation.
type Dispatcher struct {
	registry *Registry
	settings Settings
	help     HelpFunc
	log      *slog.Logger
}

// NewDispatcher returns a dispatcher over registry. settings and help may
// be nil.
func NewDispatcher(registry *Registry, settings Settings, help HelpFunc, log *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, settings: settings, help: help, log: log}
}

// Dispatch processes one message. It reports whether text invoked a
// command. Handler failures are logged and answered with a generic error.
func (d *Dispatcher) Dispatch(ctx context.Context, c Context, text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return false
	}

	var overrides map[string]string
	if !c.IsPrivate() && d.settings != nil {
		if expanded, ok := d.settings.Aliases(c.GuildID())[strings.ToLower(tokens[0])]; ok {
			tokens = append(strings.Fields(expanded), tokens[1:]...)
			if len(tokens) == 0 {
				return false
			}
		}
		overrides = d.settings.Prefixes(c.GuildID())
	}

	entry := d.registry.Match(strings.ToLower(tokens[0]), overrides)
	if entry == nil {
		if c.IsPrivate() && d.help != nil {
			if err := d.help(c); err != nil {
				d.log.Warn("help reply failed", tint.Err(err))
			}
		}
		return false
	}

	desc := entry.Descriptor()
	if c.IsPrivate() && !desc.AllowDM {
		if _, err := Warn(c, "This command can't be run in direct messages."); err != nil {
			d.log.Warn("reply failed", slog.String("command", desc.Name), tint.Err(err))
		}
		return true
	}
	if !c.IsPrivate() && d.settings != nil && !d.settings.ModuleEnabled(c.GuildID(), c.ChannelID(), desc.Category) {
		return true
	}

	if err := entry.Invoke(ctx, c, tokens[1:]); err != nil {
		d.fail(c, desc.Name, err)
	}
	return true
}

func (d *Dispatcher) fail(c Context, name string, err error) {
	attrs := []any{
		slog.String("command", name),
		slog.String("guild", c.GuildID()),
		slog.String("user", c.AuthorID()),
		tint.Err(err),
	}
	var pe *cmd.PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	d.log.Error("command failed", attrs...)
	if _, rerr := Fail(c, GenericFailure); rerr != nil {
		d.log.Warn("reply failed", slog.String("command", name), tint.Err(rerr))
	}
}
