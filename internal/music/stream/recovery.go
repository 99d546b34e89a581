package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/lmittmann/tint"
)

const (
	maxRecoveryAttempts = 3
	// endSlack is how close to the known duration an EOF counts as natural.
	endSlack = 3 * time.Second
	// bytesPerSecond of 48kHz stereo s16le.
	bytesPerSecond = sampleRate * channels * 2
)

// recoveryStream reopens the source when it ends well before the entry's
// known duration, resuming from the current position.
type recoveryStream struct {
	ctx      context.Context
	opener   Opener
	entry    music.Entry
	duration time.Duration
	log      *slog.Logger

	src     io.ReadCloser
	read    int64
	retries int
}

func newRecoveryStream(ctx context.Context, open Opener, e music.Entry, log *slog.Logger) *recoveryStream {
	d, _ := ParseDuration(e.Duration)
	return &recoveryStream{ctx: ctx, opener: open, entry: e, duration: d, log: log}
}

func (r *recoveryStream) position() time.Duration {
	return time.Duration(r.read) * time.Second / bytesPerSecond
}

// openAt opens the source at seek.
func (r *recoveryStream) openAt(seek time.Duration) error {
	src, err := r.opener(r.ctx, r.entry.StreamURL, seek.Seconds())
	if err != nil {
		return err
	}
	r.src = src
	return nil
}

func (r *recoveryStream) Read(p []byte) (int, error) {
	if r.src == nil {
		return 0, errors.New("stream not opened")
	}
	n, err := r.src.Read(p)
	r.read += int64(n)
	if !errors.Is(err, io.EOF) || n > 0 || !r.premature() {
		return n, err
	}

	r.retries++
	pos := r.position()
	r.log.Warn("stream ended prematurely, reopening",
		slog.String("title", r.entry.Title),
		slog.Duration("position", pos),
		slog.Int("attempt", r.retries))
	r.src.Close()
	r.src = nil
	if err := r.openAt(pos); err != nil {
		r.log.Warn("stream recovery failed", slog.String("title", r.entry.Title), tint.Err(err))
		return 0, io.EOF
	}
	return r.Read(p)
}

func (r *recoveryStream) premature() bool {
	if r.duration <= 0 || r.retries >= maxRecoveryAttempts || r.ctx.Err() != nil {
		return false
	}
	return r.position()+endSlack < r.duration
}

func (r *recoveryStream) Close() error {
	if r.src == nil {
		return nil
	}
	return r.src.Close()
}

// ParseDuration parses "H:MM:SS", "M:SS" or "SS".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("empty duration")
	}
	var total time.Duration
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, errors.New("invalid duration " + strconv.Quote(s))
		}
		total = total*60 + time.Duration(n)*time.Second
	}
	return total, nil
}
