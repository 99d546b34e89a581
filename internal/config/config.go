// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration.
type Config struct {
	DiscordToken     string            `env:"DISCORD_TOKEN,required,notEmpty"`
	BotAdmins        []string          `env:"BOT_ADMINS" envSeparator:","`
	DefaultPrefix    string            `env:"DEFAULT_PREFIX" envDefault:"!"`
	CategoryPrefixes map[string]string `env:"CATEGORY_PREFIXES" envDefault:"administration:."`
	DJRole           string            `env:"DJ_ROLE" envDefault:"DJ"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"data/settings.json"`
	PlaylistDB  string `env:"PLAYLIST_DB" envDefault:"data/playlists.db"`

	CacheBackend string `env:"CACHE_BACKEND" envDefault:"memory"`
	CacheDir     string `env:"CACHE_DIR"`

	MetricsListen string `env:"METRICS_LISTEN"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string     `env:"LOG_FILE"`

	BroadcastBatch int           `env:"BROADCAST_BATCH" envDefault:"5"`
	BroadcastPause time.Duration `env:"BROADCAST_PAUSE" envDefault:"500ms"`
	BroadcastTTL   time.Duration `env:"BROADCAST_TTL" envDefault:"120s"`

	WarningTTL      time.Duration `env:"WARNING_TTL" envDefault:"4.5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	FFmpegPath      string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

// Load reads envFile if it exists and parses the environment into a Config.
// A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case "memory", "badger":
	default:
		return fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.CacheBackend)
	}
	if c.BroadcastBatch < 1 {
		return fmt.Errorf("BROADCAST_BATCH must be positive, got %d", c.BroadcastBatch)
	}
	if c.DefaultPrefix == "" {
		return fmt.Errorf("DEFAULT_PREFIX cannot be empty")
	}
	return nil
}

// IsBotAdmin reports whether userID is in the configured admin list.
func (c *Config) IsBotAdmin(userID string) bool {
	return slices.Contains(c.BotAdmins, userID)
}

// Prefix returns the default prefix for a command category.
func (c *Config) Prefix(category string) string {
	if p, ok := c.CategoryPrefixes[category]; ok && p != "" {
		return p
	}
	return c.DefaultPrefix
}
