// Package cmd provides a transport-agnostic command core: a command is
// something with a name, description, and Run(ctx, invocation). Middleware
// units wrap a terminal executor into a chain; how commands are matched and
// dispatched (chat prefixes, CLI, HTTP) is left to adapters.
package cmd

import "context"

// Invocation carries the input any command runner can pass: the command
// being invoked, its arguments and an opaque payload. Adapters set Data to
// their context (e.g. the gateway message the command came from).
type Invocation struct {
	Command Command
	Args    []string
	Data    any
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Next continues a chain.
type Next func(ctx context.Context, inv *Invocation) error
