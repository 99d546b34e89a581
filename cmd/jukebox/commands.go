package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/keshon/jukebox/internal/commands"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/docs"
	"github.com/keshon/jukebox/internal/logging"
)

// cliCommands builds the registry without connecting and prints every
// route. A trigger collision fails registration and the exit status.
func cliCommands(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, done := newLogger(cfg)
	defer done()

	reg, err := buildRegistry(cfg, &core.Guards{IsBotAdmin: cfg.IsBotAdmin, Log: log}, nil, &commands.Deps{Config: cfg}, log)
	if err != nil {
		return err
	}
	if cmd.Bool("markdown") {
		return docs.Markdown(os.Stdout, cfg, reg.Entries())
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTRIGGER\tCOMMAND\tMIDDLEWARE")
	for _, r := range reg.Routes() {
		d := r.Entry.Descriptor()
		category := config.CategoryTitles[r.Category]
		if category == "" {
			category = r.Category
		}
		fmt.Fprintf(w, "%s\t%s%s\t%s\t%v\n", category, r.Prefix, r.Trigger, d.Name, d.Middleware)
	}
	return w.Flush()
}

// buildRegistry registers every command against guards. deps.Registry is
// set to the new registry.
func buildRegistry(cfg *config.Config, guards *core.Guards, executed func(), deps *commands.Deps, log *slog.Logger) (*core.Registry, error) {
	reg := core.NewRegistry(core.NewMiddlewareRegistry(guards), cfg.Prefix, executed, logging.Component(log, "registry"))
	deps.Registry = reg
	if err := reg.Register(commands.Factories(deps)...); err != nil {
		return nil, fmt.Errorf("couldn't register commands: %w", err)
	}
	return reg, nil
}
