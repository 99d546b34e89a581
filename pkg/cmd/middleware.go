package cmd

import (
	"context"
	"strings"
)

// Middleware is one stage of a chain. Handle continues the chain by calling
// next, or stops it by returning without doing so. args are the arguments
// configured for this stage, not the invocation arguments.
type Middleware interface {
	Handle(ctx context.Context, inv *Invocation, next Next, args ...string) error
}

// Validator is implemented by middleware that can check its configured
// arguments before any chain runs.
type Validator interface {
	Validate(args ...string) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, inv *Invocation, next Next, args ...string) error

// Handle calls f.
func (f MiddlewareFunc) Handle(ctx context.Context, inv *Invocation, next Next, args ...string) error {
	return f(ctx, inv, next, args...)
}

// PassThrough is a Middleware that always continues the chain unchanged.
type PassThrough struct{}

// Handle calls next.
func (PassThrough) Handle(ctx context.Context, inv *Invocation, next Next, _ ...string) error {
	return next(ctx, inv)
}

// Spec is a middleware reference as written in command descriptors:
// "kind" or "kind:arg1,arg2".
type Spec struct {
	Kind string
	Args []string
}

// ParseSpec parses a middleware reference. Surrounding whitespace around the
// kind and each argument is ignored.
func ParseSpec(s string) Spec {
	kind, rest, ok := strings.Cut(s, ":")
	sp := Spec{Kind: strings.TrimSpace(kind)}
	if !ok || strings.TrimSpace(rest) == "" {
		return sp
	}
	for _, a := range strings.Split(rest, ",") {
		sp.Args = append(sp.Args, strings.TrimSpace(a))
	}
	return sp
}

// String formats the spec back into descriptor syntax.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Kind
	}
	return s.Kind + ":" + strings.Join(s.Args, ",")
}

// Unit is a resolved chain stage: a middleware with its configured arguments.
type Unit struct {
	Spec       Spec
	Middleware Middleware
}

// Chain wraps terminal in units so that units[0] runs first and decides
// whether any later unit runs at all.
func Chain(terminal Next, units ...Unit) Next {
	next := terminal
	for i := len(units) - 1; i >= 0; i-- {
		u, inner := units[i], next
		next = func(ctx context.Context, inv *Invocation) error {
			return u.Middleware.Handle(ctx, inv, inner, u.Spec.Args...)
		}
	}
	return next
}
