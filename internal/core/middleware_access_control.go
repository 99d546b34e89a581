package core

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/pkg/cmd"
)

// isBotAdmin passes only configured bot administrators.
type isBotAdmin struct{ g *Guards }

func (m isBotAdmin) Handle(ctx context.Context, inv *cmd.Invocation, next cmd.Next, _ ...string) error {
	c := FromInvocation(inv)
	if c == nil {
		return errNoContext
	}
	if !m.g.botAdmin(c.AuthorID()) {
		_, err := Fail(c, "This command is restricted to bot administrators.")
		return err
	}
	return next(ctx, inv)
}

// hasRole passes bot administrators, direct messages, guild administrators
// and members holding every named role.
type hasRole struct{ g *Guards }

func (hasRole) Validate(args ...string) error {
	if len(args) == 0 {
		return errors.New("at least one role name is required")
	}
	return nil
}

func (m hasRole) Handle(ctx context.Context, inv *cmd.Invocation, next cmd.Next, roles ...string) error {
	c := FromInvocation(inv)
	if c == nil {
		return errNoContext
	}
	ok, err := CheckRoles(c, m.g.botAdmin, roles...)
	if err != nil || !ok {
		return err
	}
	return next(ctx, inv)
}

// CheckRoles reports whether c's author holds every role. Bot admins,
// guild administrators and direct messages pass. A refused author is told
// which roles are missing.
func CheckRoles(c Context, isBotAdmin func(userID string) bool, roles ...string) (bool, error) {
	if (isBotAdmin != nil && isBotAdmin(c.AuthorID())) || c.IsPrivate() {
		return true, nil
	}
	perms, err := c.UserPermissions()
	if err != nil {
		return false, err
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	held, err := c.RoleNames()
	if err != nil {
		return false, err
	}
	if missing := missingRoles(held, roles); len(missing) > 0 {
		_, err := Fail(c, "You need the following role(s) to use this command: `%s`", strings.Join(missing, "`, `"))
		return false, err
	}
	return true, nil
}

func missingRoles(held, required []string) []string {
	var missing []string
	for _, want := range required {
		found := false
		for _, h := range held {
			if strings.EqualFold(h, want) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return missing
}
