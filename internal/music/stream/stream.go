// Package stream turns queue entries into opus frames on a voice
// connection. Decoding is delegated to an ffmpeg subprocess producing
// 48kHz stereo s16le PCM; encoding uses libopus.
package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/keshon/jukebox/internal/music"
	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Sink is a voice connection that accepts opus frames.
type Sink interface {
	music.Voice
	Speaking(speaking bool) error
	Frames() chan<- []byte
}

// Encoder encodes one PCM frame to opus.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// Opener starts decoding url from seek into raw PCM.
type Opener func(ctx context.Context, url string, seek float64) (io.ReadCloser, error)

// Streamer plays entries on Sink voice connections.
type Streamer struct {
	Open       Opener
	NewEncoder func() (Encoder, error)
	Log        *slog.Logger
}

// New returns a streamer decoding through the ffmpeg binary at ffmpegPath.
func New(ffmpegPath string, log *slog.Logger) *Streamer {
	return &Streamer{
		Open: FFmpeg(ffmpegPath),
		NewEncoder: func() (Encoder, error) {
			return gopus.NewEncoder(sampleRate, channels, gopus.Audio)
		},
		Log: log,
	}
}

// Play starts streaming e to v. The stream outlives ctx; it ends when the
// source is exhausted or Stop is called.
func (s *Streamer) Play(ctx context.Context, v music.Voice, e music.Entry, volume int) (music.Playback, error) {
	sink, ok := v.(Sink)
	if !ok {
		return nil, fmt.Errorf("voice connection %T cannot carry audio", v)
	}
	enc, err := s.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	src := newRecoveryStream(pctx, s.Open, e, s.Log)
	if err := src.openAt(0); err != nil {
		cancel()
		return nil, err
	}

	p := &playback{cancel: cancel, done: make(chan struct{})}
	p.volume.Store(int32(volume))
	go func() {
		defer close(p.done)
		defer src.Close()
		p.err = p.run(pctx, src, enc, sink)
	}()
	return p, nil
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	volume atomic.Int32

	mu     sync.Mutex
	paused bool
	wake   chan struct{}
}

func (p *playback) Done() <-chan struct{} { return p.done }

// Err returns the error that ended the stream. It is only meaningful after
// Done is closed.
func (p *playback) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *playback) Stop() { p.cancel() }

func (p *playback) SetVolume(v int) { p.volume.Store(int32(v)) }

func (p *playback) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if paused == p.paused {
		return
	}
	p.paused = paused
	if paused {
		p.wake = make(chan struct{})
	} else {
		close(p.wake)
	}
}

// waitResumed blocks while paused. It returns false when ctx ends first.
func (p *playback) waitResumed(ctx context.Context) bool {
	p.mu.Lock()
	paused, wake := p.paused, p.wake
	p.mu.Unlock()
	if !paused {
		return ctx.Err() == nil
	}
	select {
	case <-wake:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *playback) run(ctx context.Context, src io.Reader, enc Encoder, sink Sink) error {
	if err := sink.Speaking(true); err != nil {
		return fmt.Errorf("speaking: %w", err)
	}
	defer sink.Speaking(false)

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)
	for p.waitResumed(ctx) {
		if _, err := io.ReadFull(src, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		scale(intBuf, pcmBuf, int32(p.volume.Load()))

		frame, err := enc.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}
		select {
		case sink.Frames() <- frame:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// scale decodes little-endian samples from pcm into dst at volume percent.
func scale(dst []int16, pcm []byte, volume int32) {
	for i := range dst {
		s := int32(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		dst[i] = int16(s * volume / 100)
	}
}
