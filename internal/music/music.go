// Package music owns per-guild playback: the queue, the voice connection
// lifecycle, and skip voting. Gateway I/O and audio encoding are reached
// through the interfaces declared here.
package music

import (
	"context"
	"errors"
	"fmt"
)

// InvalidStream marks an entry whose stream could not be resolved. Such
// entries are dropped silently when they reach the head of the queue.
const InvalidStream = "INVALID"

// Entry is one queued track.
type Entry struct {
	Title       string
	Duration    string
	StreamURL   string
	SourceLink  string
	RequesterID string
}

// Valid reports whether the entry can be streamed.
func (e Entry) Valid() bool {
	return e.StreamURL != "" && e.StreamURL != InvalidStream
}

// Request identifies who asked for an operation and where to answer.
type Request struct {
	GuildID       string
	TextChannelID string
	UserID        string
}

// Listener is a non-bot member of a voice channel.
type Listener struct {
	UserID   string
	Deafened bool
}

// Voice is a live voice connection.
type Voice interface {
	ChannelID() string
	Disconnect() error
}

// VoiceGateway is the part of the gateway concerned with voice.
type VoiceGateway interface {
	// UserVoiceChannel returns the voice channel userID occupies, or "".
	UserVoiceChannel(guildID, userID string) (string, error)
	// Join connects the bot to a voice channel.
	Join(ctx context.Context, guildID, channelID string) (Voice, error)
	// Listeners returns the non-bot members of a voice channel.
	Listeners(guildID, channelID string) ([]Listener, error)
}

// Playback is one entry being streamed. Done is closed when the stream
// ends, whether it finished or was stopped.
type Playback interface {
	Done() <-chan struct{}
	Err() error
	Stop()
	SetPaused(paused bool)
	SetVolume(volume int)
}

// Streamer starts playback of an entry on a voice connection.
type Streamer interface {
	Play(ctx context.Context, v Voice, e Entry, volume int) (Playback, error)
}

// Notifier posts state transition notices to a guild's text channel.
type Notifier interface {
	NowPlaying(guildID, channelID string, e Entry)
	QueueEnded(guildID, channelID string)
}

// Errors for operations that need something playing.
var (
	ErrNotConnected   = errors.New("not connected to voice")
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrAlreadyPaused  = errors.New("playback is already paused")
	ErrNotPaused      = errors.New("playback is not paused")
)

// Rejection keys.
const (
	KeyVoiceRequired      = "music.voice-required"
	KeyMissingPermissions = "music.missing-permissions"
	KeyAlone              = "music.alone"
	KeyNotInChannel       = "music.not-in-channel"
	KeyDeafened           = "music.deafened"
)

// Rejection is a policy refusal that callers turn into a user-facing
// warning.
type Rejection struct {
	Key          string
	Placeholders map[string]string
}

func (r *Rejection) Error() string {
	if len(r.Placeholders) == 0 {
		return "rejected: " + r.Key
	}
	return fmt.Sprintf("rejected: %s %v", r.Key, r.Placeholders)
}

func reject(key string, kv ...string) *Rejection {
	r := &Rejection{Key: key}
	if len(kv) > 0 {
		r.Placeholders = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			r.Placeholders[kv[i]] = kv[i+1]
		}
	}
	return r
}

// AsRejection returns the rejection in err's chain, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	ok := errors.As(err, &r)
	return r, ok
}
