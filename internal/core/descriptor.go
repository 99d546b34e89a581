package core

import (
	"context"
	"errors"

	"github.com/keshon/jukebox/pkg/cmd"
)

// Handler runs a matched command. args are the message tokens after the
// trigger.
type Handler interface {
	OnCommand(ctx context.Context, c Context, args []string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c Context, args []string) error

// OnCommand calls f.
func (f HandlerFunc) OnCommand(ctx context.Context, c Context, args []string) error {
	return f(ctx, c, args)
}

// Descriptor describes one command. It must not be modified after
// registration; hot reload replaces it wholesale.
type Descriptor struct {
	Name        string
	Category    string
	Description string
	Usage       string
	// Triggers[0] is the canonical trigger; the rest are aliases.
	Triggers []string
	// Middleware lists "kind" or "kind:arg1,arg2" specs, outermost first.
	Middleware []string
	AllowDM    bool
	Handler    Handler
}

// Factory builds a fresh descriptor. The registry calls it at registration
// and again on every hot reload.
type Factory func() *Descriptor

var errNoContext = errors.New("invocation carries no gateway context")

// command exposes a descriptor to the chain machinery.
type command struct {
	d *Descriptor
}

func (c command) Name() string        { return c.d.Name }
func (c command) Description() string { return c.d.Description }

func (c command) Run(ctx context.Context, inv *cmd.Invocation) error {
	gc := FromInvocation(inv)
	if gc == nil {
		return errNoContext
	}
	return c.d.Handler.OnCommand(ctx, gc, inv.Args)
}

// DescriptorOf returns the descriptor behind an invocation built by the
// registry, or nil.
func DescriptorOf(inv *cmd.Invocation) *Descriptor {
	if c, ok := inv.Command.(command); ok {
		return c.d
	}
	return nil
}
