package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/keshon/jukebox/pkg/cmd"
)

// history appends every guild invocation that reached it to the command
// log, after the rest of the chain has run.
type history struct{ g *Guards }

func (m history) Handle(ctx context.Context, inv *cmd.Invocation, next cmd.Next, _ ...string) error {
	err := next(ctx, inv)

	c := FromInvocation(inv)
	if c == nil || c.IsPrivate() {
		return err
	}
	rec := CommandRecord{
		ChannelID: c.ChannelID(),
		UserID:    c.AuthorID(),
		Username:  c.AuthorName(),
		Command:   inv.Command.Name(),
		Args:      inv.Args,
		Datetime:  time.Now(),
	}
	if lerr := m.g.History.AppendCommand(c.GuildID(), rec); lerr != nil {
		m.g.Log.Warn("failed to log command", slog.String("command", rec.Command), tint.Err(lerr))
	}
	return err
}
