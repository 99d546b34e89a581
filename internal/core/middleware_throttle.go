package core

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/lmittmann/tint"

	"github.com/keshon/jukebox/pkg/cmd"
)

// Throttle scopes.
const (
	ScopeUser    = "user"
	ScopeChannel = "channel"
	ScopeGuild   = "guild"
	ScopeDM      = "dm"
)

// Fingerprint returns the throttle key for command invoked through c.
// In direct messages every scope collapses to one per-user bucket.
func Fingerprint(scope string, c Context, command string) string {
	if c.IsPrivate() {
		return ScopeDM + "." + c.AuthorID() + "." + command
	}
	switch scope {
	case ScopeChannel:
		return ScopeChannel + "." + c.ChannelID() + "." + command
	case ScopeGuild:
		return ScopeGuild + "." + c.GuildID() + "." + command
	default:
		return ScopeUser + "." + c.GuildID() + "." + c.AuthorID() + "." + command
	}
}

// throttled is configured as "throttle.<scope>:maxAttempts,decaySeconds".
type throttled struct {
	g     *Guards
	scope string
}

func parseThrottleArgs(args []string) (int, time.Duration, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("want maxAttempts,decaySeconds")
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil || limit < 1 {
		return 0, 0, errors.New("maxAttempts must be a positive integer")
	}
	secs, err := strconv.ParseFloat(args[1], 64)
	if err != nil || secs <= 0 {
		return 0, 0, errors.New("decaySeconds must be a positive number")
	}
	return limit, time.Duration(secs * float64(time.Second)), nil
}

func (throttled) Validate(args ...string) error {
	_, _, err := parseThrottleArgs(args)
	return err
}

func (m throttled) Handle(ctx context.Context, inv *cmd.Invocation, next cmd.Next, args ...string) error {
	c := FromInvocation(inv)
	if c == nil {
		return errNoContext
	}
	limit, decay, err := parseThrottleArgs(args)
	if err != nil {
		return err
	}
	fp := Fingerprint(m.scope, c, inv.Command.Name())
	if m.g.Throttle.CanProceed(fp, limit, decay) {
		return next(ctx, inv)
	}

	if m.g.Throttled != nil {
		m.g.Throttled(m.scope)
	}
	rec := m.g.Throttle.Peek(fp)
	secs := int(math.Ceil(rec.Remaining(m.g.Throttle.Now()).Seconds()))
	msgID, err := Warn(c, "Slow down! You can use this command again in %d second(s).", max(secs, 1))
	if err != nil {
		return err
	}
	m.deleteLater(c, msgID)
	return nil
}

// deleteLater removes the warning after WarningTTL. Failures are logged only.
func (m throttled) deleteLater(c Context, msgID string) {
	if m.g.Jobs == nil || msgID == "" {
		return
	}
	err := m.g.Jobs.After("delete-warning:"+msgID, m.g.WarningTTL, func(context.Context) error {
		return c.DeleteMessage(msgID)
	})
	if err != nil {
		m.g.Log.Warn("schedule warning deletion", slog.String("message", msgID), tint.Err(err))
	}
}
