package core

import (
	"log/slog"
	"time"

	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/throttle"
)

// Middleware kinds usable in descriptors.
const (
	MiddlewareIsBotAdmin      = "isBotAdmin"
	MiddlewareHasRole         = "hasRole"
	MiddlewareRequire         = "require"
	MiddlewareRequireUser     = "requireUser"
	MiddlewareThrottleUser    = "throttle.user"
	MiddlewareThrottleChannel = "throttle.channel"
	MiddlewareThrottleGuild   = "throttle.guild"
	MiddlewareHistory         = "history"
)

// CommandLog records executed commands.
type CommandLog interface {
	AppendCommand(guildID string, rec CommandRecord) error
}

// CommandRecord is one line of a guild's command history.
type CommandRecord struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	Datetime  time.Time `json:"datetime"`
}

// Guards holds what the built-in middleware need.
type Guards struct {
	IsBotAdmin func(userID string) bool
	Throttle   *throttle.Throttle
	// Jobs schedules deletion of throttle warnings after WarningTTL.
	Jobs       *jobmgr.Manager
	WarningTTL time.Duration
	// Throttled is called with the scope of every rejected invocation.
	Throttled func(scope string)
	History   CommandLog
	Log       *slog.Logger
}

// NewMiddlewareRegistry returns a middleware registry holding every
// built-in kind bound to g.
func NewMiddlewareRegistry(g *Guards) *cmd.Registry {
	r := cmd.NewRegistry()
	r.Register(MiddlewareIsBotAdmin, isBotAdmin{g})
	r.Register(MiddlewareHasRole, hasRole{g})
	r.Register(MiddlewareRequire, requirePermission{g: g, bot: true})
	r.Register(MiddlewareRequireUser, requirePermission{g: g})
	r.Register(MiddlewareThrottleUser, throttled{g: g, scope: ScopeUser})
	r.Register(MiddlewareThrottleChannel, throttled{g: g, scope: ScopeChannel})
	r.Register(MiddlewareThrottleGuild, throttled{g: g, scope: ScopeGuild})
	if g.History != nil {
		r.Register(MiddlewareHistory, history{g})
	}
	return r
}

func (g *Guards) botAdmin(userID string) bool {
	return g.IsBotAdmin != nil && g.IsBotAdmin(userID)
}
