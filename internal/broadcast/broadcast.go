// Package broadcast stages administrator announcements and fans them out
// to every guild's announcement channel in small, paced batches.
package broadcast

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/keshon/jukebox/pkg/cache"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/keshon/jukebox/pkg/retrylimit"
	"github.com/lmittmann/tint"
)

// Results reported to the Result hook.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
)

// Sender posts a message to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, body string) error
}

// Targets lists destination channels keyed by guild id.
type Targets interface {
	AnnounceChannels() map[string]string
}

// Config controls staging and pacing.
type Config struct {
	TTL       time.Duration
	BatchSize int
	Pause     time.Duration
	Retry     retrylimit.Config
}

// DefaultConfig stages for two minutes and sends five messages every
// half second.
func DefaultConfig() Config {
	return Config{
		TTL:       120 * time.Second,
		BatchSize: 5,
		Pause:     500 * time.Millisecond,
		Retry:     retrylimit.DefaultConfig(),
	}
}

// Broadcaster prepares and sends broadcasts.
type Broadcaster struct {
	store   cache.Store
	jobs    *jobmgr.Manager
	sender  Sender
	targets Targets
	limiter *retrylimit.AdaptiveLimiter
	cfg     Config
	log     *slog.Logger

	// Now is used to derive hashes.
	Now func() time.Time
	// Sleep waits between batches.
	Sleep func(ctx context.Context, d time.Duration) error
	// Result is called once per destination.
	Result func(result string)
}

// New returns a broadcaster staging bodies in store and running fan-outs
// as jobs.
func New(store cache.Store, jobs *jobmgr.Manager, sender Sender, targets Targets, limiter *retrylimit.AdaptiveLimiter, cfg Config, log *slog.Logger) *Broadcaster {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Broadcaster{
		store:   store,
		jobs:    jobs,
		sender:  sender,
		targets: targets,
		limiter: limiter,
		cfg:     cfg,
		log:     log,
		Now:     time.Now,
		Sleep:   sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func key(hash string) string {
	return "broadcast:" + hash
}

// Prepare stages body and returns the hash that sends it. Nothing is sent.
func (b *Broadcaster) Prepare(body string) (string, error) {
	if body == "" {
		return "", errors.New("empty broadcast")
	}
	h := sha1.New()
	h.Write([]byte(strconv.FormatInt(b.Now().UnixNano(), 10)))
	h.Write([]byte(body))
	hash := hex.EncodeToString(h.Sum(nil))[:10]

	if err := b.store.Put(key(hash), []byte(body), b.cfg.TTL); err != nil {
		return "", fmt.Errorf("stage broadcast: %w", err)
	}
	return hash, nil
}

// Peek returns the staged body for hash.
func (b *Broadcaster) Peek(hash string) (string, bool) {
	v, ok := b.store.Get(key(hash))
	return string(v), ok
}

// Send starts fanning out the body staged under hash and reports whether
// there was one. The staged body is consumed, so a second Send for the same
// hash is a no-op.
func (b *Broadcaster) Send(hash string) (bool, error) {
	v, ok := b.store.Pull(key(hash))
	if !ok {
		return false, nil
	}
	body := string(v)
	targets := b.targets.AnnounceChannels()
	guilds := slices.Sorted(maps.Keys(targets))
	channels := make([]string, len(guilds))
	for i, g := range guilds {
		channels[i] = targets[g]
	}

	err := b.jobs.Start("broadcast:"+hash, func(ctx context.Context) error {
		return b.fanout(ctx, hash, body, channels)
	})
	if err != nil {
		return false, fmt.Errorf("start broadcast: %w", err)
	}
	return true, nil
}

func (b *Broadcaster) fanout(ctx context.Context, hash, body string, channels []string) error {
	log := b.log.With(slog.String("hash", hash))
	log.Info("broadcast started", slog.Int("targets", len(channels)))

	var sent, failed int
	for batch := range slices.Chunk(channels, b.cfg.BatchSize) {
		if sent+failed > 0 {
			if err := b.Sleep(ctx, b.cfg.Pause); err != nil {
				log.Warn("broadcast interrupted", slog.Int("sent", sent), slog.Int("remaining", len(channels)-sent-failed))
				return err
			}
		}
		for _, ch := range batch {
			err := retrylimit.Do(ctx, b.limiter, b.cfg.Retry, func() error {
				return b.sender.Send(ctx, ch, body)
			})
			if err != nil {
				failed++
				log.Warn("broadcast delivery failed", slog.String("channel", ch), tint.Err(err))
				b.report(ResultFailed)
				continue
			}
			sent++
			b.report(ResultSent)
		}
	}
	log.Info("broadcast finished", slog.Int("sent", sent), slog.Int("failed", failed))
	return nil
}

func (b *Broadcaster) report(result string) {
	if b.Result != nil {
		b.Result(result)
	}
}
