package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/logging"
)

var app = cli.Command{
	Name:  "jukebox",
	Usage: "Discord music and moderation bot",

	Flags: []cli.Flag{
		&flagEnvFile,
		&flagLogLevel,
	},
	Commands: []*cli.Command{
		{
			Name:   "run",
			Usage:  "Connect to Discord and serve commands",
			Action: cliRun,
		},
		{
			Name:    "commands",
			Aliases: []string{"routes"},
			Usage:   "Print the command table and check triggers are unique",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "markdown",
					Usage: "Print a markdown command reference instead of the table",
				},
			},
			Action: cliCommands,
		},
	},
	Action: cliRun,
}

var (
	flagEnvFile = cli.StringFlag{
		Name:       "env-file",
		Usage:      "Optional dotenv file loaded before reading the environment",
		Value:      ".env",
		Persistent: true,
	}

	flagLogLevel = cli.StringFlag{
		Name:       "log-level",
		Usage:      "Override LOG_LEVEL: debug, info, warn or error",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("env-file"))
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	if cmd.IsSet("log-level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	slog.SetDefault(log)
	return log, func() { closer.Close() }
}
