package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/keshon/jukebox/internal/broadcast"
	"github.com/keshon/jukebox/internal/commands"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/metrics"
	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/radio"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cache"
	"github.com/keshon/jukebox/pkg/datastore"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/retrylimit"
	"github.com/keshon/jukebox/pkg/throttle"
)

func cliRun(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, done := newLogger(cfg)
	defer done()
	logging.RouteDiscordgo(log)
	log.Info("starting jukebox", slog.String("prefix", cfg.DefaultPrefix), slog.String("cache", cfg.CacheBackend))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	group, ctx := errgroup.WithContext(ctx)

	store, closeStore, err := openCache(ctx, group, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	jobs := jobmgr.NewManager(ctx, logging.Component(log, "jobs"))

	dsCfg := datastore.DefaultConfig(cfg.StoragePath)
	dsCfg.Logger = logging.Component(log, "datastore")
	ds, err := datastore.Open(dsCfg)
	if err != nil {
		return fmt.Errorf("couldn't open settings: %w", err)
	}
	settings := storage.New(ds, logging.Component(log, "storage"))
	defer settings.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.PlaylistDB), 0o755); err != nil {
		return fmt.Errorf("couldn't create playlist directory: %w", err)
	}
	playlists, err := storage.OpenPlaylists(ctx, cfg.PlaylistDB, sqlitex.PoolOptions{PoolSize: 4})
	if err != nil {
		return err
	}
	defer playlists.Close()

	limiter := retrylimit.NewAdaptiveLimiter(5, 1, 40, 1, 0.5)
	retry := retrylimit.DefaultConfig()
	retry.Status = discord.RESTStatus
	retry.Log = logging.Component(log, "rest")

	bot, err := discord.New(discord.Options{
		Token:           cfg.DiscordToken,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Limiter:         limiter,
		Retry:           retry,
		Log:             logging.Component(log, "discord"),
	})
	if err != nil {
		return err
	}

	streamer := stream.New(cfg.FFmpegPath, logging.Component(log, "stream"))
	player := music.NewManager(bot.Voice(), streamer, bot.Notifier(), logging.Component(log, "music"))
	player.Started = m.TracksStarted.Inc

	yt := youtube.New(logging.Component(log, "youtube"))
	tracks := &sources.Resolver{Search: yt, Links: []sources.Source{yt, radio.New()}}

	bc := broadcast.New(store, jobs, bot, settings, limiter, broadcast.Config{
		TTL:       cfg.BroadcastTTL,
		BatchSize: cfg.BroadcastBatch,
		Pause:     cfg.BroadcastPause,
		Retry:     retry,
	}, logging.Component(log, "broadcast"))
	bc.Result = func(result string) { m.BroadcastMessages.WithLabelValues(result).Inc() }

	guards := &core.Guards{
		IsBotAdmin: cfg.IsBotAdmin,
		Throttle:   throttle.New(store),
		Jobs:       jobs,
		WarningTTL: cfg.WarningTTL,
		Throttled:  func(scope string) { m.Throttled.WithLabelValues(scope).Inc() },
		History:    settings,
		Log:        logging.Component(log, "middleware"),
	}

	var executed atomic.Uint64
	deps := &commands.Deps{
		Config:    cfg,
		Storage:   settings,
		Playlists: playlists,
		Music:     player,
		Tracks:    tracks,
		Broadcast: bc,
		Gateway:   bot,
		Jobs:      jobs,
		Log:       logging.Component(log, "commands"),
		Executed:  executed.Load,
		Started:   time.Now(),
		Now:       time.Now,
	}
	registry, err := buildRegistry(cfg, guards, func() {
		executed.Add(1)
		m.CommandsExecuted.Inc()
	}, deps, log)
	if err != nil {
		return err
	}
	dispatcher := core.NewDispatcher(registry, settings, commands.Help(deps), logging.Component(log, "dispatch"))
	log.Info("commands registered", slog.Int("routes", len(registry.Routes())))

	if cfg.MetricsListen != "" {
		serveMetrics(ctx, group, cfg.MetricsListen, promReg, log)
	}
	group.Go(func() error {
		return bot.Serve(ctx, dispatcher, player)
	})

	err = group.Wait()
	wait, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if jerr := jobs.Wait(wait); jerr != nil {
		log.Warn("jobs still running at exit", slog.Any("jobs", jobs.List()))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// openCache opens the configured cache backend. The memory backend's
// sweeper runs in group.
func openCache(ctx context.Context, group *errgroup.Group, cfg *config.Config, log *slog.Logger) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "badger":
		b, err := cache.OpenBadger(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				log.Warn("close cache", tint.Err(err))
			}
		}, nil
	default:
		mem := cache.NewMemory()
		group.Go(func() error {
			mem.RunSweeper(ctx, time.Minute, logging.Component(log, "cache"))
			return nil
		})
		return mem, func() {}, nil
	}
}

func serveMetrics(ctx context.Context, group *errgroup.Group, addr string, reg *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	group.Go(func() error {
		log.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shut)
	})
}
