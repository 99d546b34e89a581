package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/keshon/jukebox/pkg/cmd"
)

// DuplicateTriggerError reports two commands resolving to the same
// prefix+trigger.
type DuplicateTriggerError struct {
	Trigger string
	First   string
	Second  string
}

func (e *DuplicateTriggerError) Error() string {
	return fmt.Sprintf("trigger %q is claimed by both %q and %q", e.Trigger, e.First, e.Second)
}

// ErrUnknownCommand is returned by Reload for a name that was never registered.
var ErrUnknownCommand = errors.New("unknown command")

// Entry is the stable handle for one command name. Hot reload swaps what it
// points at but never replaces the Entry itself.
type Entry struct {
	name string
	cur  atomic.Pointer[bound]
}

type bound struct {
	desc   *Descriptor
	prefix string
	chain  cmd.Next
}

// Descriptor returns the current descriptor.
func (e *Entry) Descriptor() *Descriptor { return e.cur.Load().desc }

// Prefix returns the default prefix resolved from the descriptor's category.
func (e *Entry) Prefix() string { return e.cur.Load().prefix }

// Invoke runs the current middleware chain for c with args.
func (e *Entry) Invoke(ctx context.Context, c Context, args []string) error {
	b := e.cur.Load()
	return b.chain(ctx, &cmd.Invocation{Command: command{b.desc}, Args: args, Data: c})
}

// Route is one prefix+trigger binding in the dispatch table.
type Route struct {
	Category string
	Prefix   string
	Trigger  string
	Entry    *Entry
}

type table struct {
	byKey  map[string]*Entry
	routes []Route
}

// Registry maps triggers to commands. Readers never block; writers are
// serialized and publish a complete new table atomically.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	entries   map[string]*Entry
	order     []string
	table     atomic.Pointer[table]

	middleware *cmd.Registry
	prefix     func(category string) string
	terminal   cmd.Next
	log        *slog.Logger
}

// NewRegistry returns an empty registry. Chains are resolved through mw and
// end in a terminal that calls executed before each handler. prefix gives
// the default prefix of a category.
func NewRegistry(mw *cmd.Registry, prefix func(category string) string, executed func(), log *slog.Logger) *Registry {
	r := &Registry{
		factories:  make(map[string]Factory),
		entries:    make(map[string]*Entry),
		middleware: mw,
		prefix:     prefix,
		terminal:   cmd.Terminal(executed),
		log:        log,
	}
	r.table.Store(&table{byKey: map[string]*Entry{}})
	return r
}

// Register builds and adds commands. Nothing is registered unless every
// descriptor is valid and no prefix+trigger collides with another command.
func (r *Registry) Register(factories ...Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]*bound, len(factories))
	var names []string
	for _, f := range factories {
		b, err := r.bind(f())
		if err != nil {
			return err
		}
		name := b.desc.Name
		if _, dup := r.entries[name]; dup {
			return fmt.Errorf("command %q registered twice", name)
		}
		if _, dup := pending[name]; dup {
			return fmt.Errorf("command %q registered twice", name)
		}
		pending[name] = b
		names = append(names, name)
	}

	all := r.current()
	for _, name := range names {
		all[name] = pending[name]
	}
	order := append(append([]string(nil), r.order...), names...)
	entries := make(map[string]*Entry, len(order))
	for _, name := range order {
		if e, ok := r.entries[name]; ok {
			entries[name] = e
		} else {
			entries[name] = &Entry{name: name}
		}
	}
	t, err := buildTable(order, all, entries)
	if err != nil {
		return err
	}

	for i, f := range factories {
		name := names[i]
		r.factories[name] = f
		e := entries[name]
		e.cur.Store(pending[name])
		r.entries[name] = e
	}
	r.order = order
	r.table.Store(t)
	return nil
}

// Reload rebuilds one command from its factory and swaps it in. The old
// triggers are released; the Entry keeps its identity.
func (r *Registry) Reload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factories[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	b, err := r.bind(f())
	if err != nil {
		return err
	}
	if b.desc.Name != name {
		return fmt.Errorf("reload of %q produced command %q", name, b.desc.Name)
	}
	all := r.current()
	all[name] = b
	t, err := buildTable(r.order, all, r.entries)
	if err != nil {
		return err
	}
	r.entries[name].cur.Store(b)
	r.table.Store(t)
	r.log.Info("command reloaded", slog.String("command", name))
	return nil
}

// current snapshots the bound state of every entry. Callers hold r.mu.
func (r *Registry) current() map[string]*bound {
	out := make(map[string]*bound, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.cur.Load()
	}
	return out
}

func (r *Registry) bind(d *Descriptor) (*bound, error) {
	if d == nil || d.Name == "" {
		return nil, errors.New("command descriptor without a name")
	}
	if len(d.Triggers) == 0 {
		return nil, fmt.Errorf("command %q has no triggers", d.Name)
	}
	if d.Handler == nil {
		return nil, fmt.Errorf("command %q has no handler", d.Name)
	}
	units, unknown, err := r.middleware.Resolve(d.Middleware)
	if err != nil {
		return nil, fmt.Errorf("command %q: %w", d.Name, err)
	}
	if len(unknown) > 0 {
		r.log.Debug("ignoring unknown middleware", slog.String("command", d.Name), slog.Any("middleware", unknown))
	}
	return &bound{
		desc:   d,
		prefix: strings.ToLower(r.prefix(d.Category)),
		chain:  cmd.Chain(r.terminal, units...),
	}, nil
}

func buildTable(order []string, all map[string]*bound, entries map[string]*Entry) (*table, error) {
	t := &table{byKey: make(map[string]*Entry)}
	for _, name := range order {
		b := all[name]
		seen := make(map[string]bool, len(b.desc.Triggers))
		for _, trig := range b.desc.Triggers {
			trig = strings.ToLower(trig)
			if seen[trig] {
				continue
			}
			seen[trig] = true
			key := b.prefix + trig
			if other, ok := t.byKey[key]; ok {
				return nil, &DuplicateTriggerError{Trigger: key, First: other.name, Second: name}
			}
			e := entries[name]
			t.byKey[key] = e
			t.routes = append(t.routes, Route{Category: b.desc.Category, Prefix: b.prefix, Trigger: trig, Entry: e})
		}
	}
	return t, nil
}

// Match finds the command invoked by token, which must already be
// lowercased. overrides maps categories to per-guild prefixes that replace
// the defaults.
func (r *Registry) Match(token string, overrides map[string]string) *Entry {
	t := r.table.Load()
	if len(overrides) == 0 {
		return t.byKey[token]
	}
	for _, rt := range t.routes {
		p := rt.Prefix
		if o := overrides[rt.Category]; o != "" {
			p = strings.ToLower(o)
		}
		if token == p+rt.Trigger {
			return rt.Entry
		}
	}
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns every entry in registration order.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Routes returns the current dispatch table.
func (r *Registry) Routes() []Route {
	return append([]Route(nil), r.table.Load().routes...)
}
