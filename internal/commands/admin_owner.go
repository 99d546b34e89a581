package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
)

func (a *adminHandlers) reload(_ context.Context, c core.Context, args []string) error {
	const u = "reload command <name> | db"
	if len(args) == 0 {
		return a.usage(c, u)
	}
	switch strings.ToLower(args[0]) {
	case "command":
		if len(args) < 2 {
			return a.usage(c, u)
		}
		name := strings.ToLower(args[1])
		err := a.d.Registry.Reload(name)
		var dup *core.DuplicateTriggerError
		switch {
		case errors.Is(err, core.ErrUnknownCommand):
			return replied(core.Warn(c, "There is no command called `%s`.", name))
		case errors.As(err, &dup):
			return replied(core.Fail(c, "Reload refused: %s", dup.Error()))
		case err != nil:
			return err
		}
		return replied(core.Success(c, "Reloaded `%s`.", name))
	case "db":
		if err := a.d.Storage.Reload(); err != nil {
			return err
		}
		return replied(core.Success(c, "Settings reloaded from disk."))
	}
	return a.usage(c, u)
}

func (a *adminHandlers) setStatus(_ context.Context, c core.Context, args []string) error {
	text := strings.Join(args, " ")
	if err := a.d.Gateway.SetStatus(text); err != nil {
		return err
	}
	if text == "" {
		return replied(core.Success(c, "Status cleared."))
	}
	return replied(core.Success(c, "Status set to **%s**.", text))
}

func (a *adminHandlers) broadcast(_ context.Context, c core.Context, args []string) error {
	if len(args) == 0 {
		return a.usage(c, "broadcast <message>")
	}
	body := strings.Join(args, " ")
	hash, err := a.d.Broadcast.Prepare(body)
	if err != nil {
		return err
	}
	_, err = c.Reply(core.Embed(core.EmbedColor, "📣 Broadcast staged",
		fmt.Sprintf("%s\n\nSend it with `%sbroadcastsend %s` within %s.", body, prefixIn(a.d, c, config.CategoryAdministration), hash, a.d.Config.BroadcastTTL)))
	return err
}

func (a *adminHandlers) broadcastSend(_ context.Context, c core.Context, args []string) error {
	if len(args) != 1 {
		return a.usage(c, "broadcastsend <hash>")
	}
	ok, err := a.d.Broadcast.Send(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return replied(core.Warn(c, "No staged broadcast `%s`. It may have expired.", args[0]))
	}
	return replied(core.Success(c, "Broadcast `%s` is on its way.", args[0]))
}
