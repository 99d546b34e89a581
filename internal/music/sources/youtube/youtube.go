// Package youtube resolves YouTube videos, playlists and search queries.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/kkdai/youtube/v2"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

// playlistWorkers bounds concurrent video lookups for one playlist.
const playlistWorkers = 4

var linkPattern = regexp.MustCompile(`^(?:https?://)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)/\S+`)

// Client is the part of the YouTube client the source uses.
type Client interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	VideoFromPlaylistEntryContext(ctx context.Context, entry *youtube.PlaylistEntry) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// Source resolves YouTube input.
type Source struct {
	client Client
	search *Searcher
	log    *slog.Logger
}

// New returns a source backed by the kkdai client.
func New(log *slog.Logger) *Source {
	return NewWithClient(&youtube.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}, NewSearcher(), log)
}

// NewWithClient returns a source using the given client and searcher.
func NewWithClient(c Client, s *Searcher, log *slog.Logger) *Source {
	return &Source{client: c, search: s, log: log}
}

func (s *Source) Name() string { return "youtube" }

func (s *Source) Match(input string) bool {
	return linkPattern.MatchString(input)
}

// Resolve accepts a watch link, a playlist link or search text.
func (s *Source) Resolve(ctx context.Context, input string) ([]music.Entry, error) {
	input = strings.TrimSpace(input)
	if !sources.IsURL(input) {
		link, err := s.search.FirstVideoURL(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("could not find video for query: %w", err)
		}
		input = link
	}

	if isPlaylistOnly(input) {
		return s.playlist(ctx, input)
	}
	link := CleanVideoURL(input)
	v, err := s.client.GetVideoContext(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	e, err := s.entry(ctx, v, link)
	if err != nil {
		return nil, err
	}
	return []music.Entry{e}, nil
}

func (s *Source) playlist(ctx context.Context, link string) ([]music.Entry, error) {
	pl, err := s.client.GetPlaylistContext(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	if len(pl.Videos) == 0 {
		return nil, errors.New("playlist is empty")
	}

	entries := make([]music.Entry, len(pl.Videos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(playlistWorkers)
	for i, item := range pl.Videos {
		g.Go(func() error {
			watch := "https://www.youtube.com/watch?v=" + item.ID
			v, err := s.client.VideoFromPlaylistEntryContext(gctx, item)
			if err == nil {
				entries[i], err = s.entry(gctx, v, watch)
			}
			if err != nil {
				// One broken video must not sink the playlist.
				s.log.Debug("playlist entry unavailable", slog.String("id", item.ID), tint.Err(err))
				entries[i] = music.Entry{
					Title:      item.Title,
					Duration:   sources.FormatDuration(item.Duration),
					StreamURL:  music.InvalidStream,
					SourceLink: watch,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, ctx.Err()
}

func (s *Source) entry(ctx context.Context, v *youtube.Video, link string) (music.Entry, error) {
	formats := v.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return music.Entry{}, errors.New("no audio formats found for video")
	}
	stream, err := s.client.GetStreamURLContext(ctx, v, &formats[0])
	if err != nil {
		return music.Entry{}, fmt.Errorf("get stream URL: %w", err)
	}
	return music.Entry{
		Title:      v.Title,
		Duration:   sources.FormatDuration(v.Duration),
		StreamURL:  stream,
		SourceLink: link,
	}, nil
}

// isPlaylistOnly reports whether link names a playlist rather than a video
// within one.
func isPlaylistOnly(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get("list") != "" && q.Get("v") == ""
}

// CleanVideoURL strips everything but the video id from a watch link.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch host := u.Hostname(); host {
	case "youtu.be":
		if vid := strings.Trim(u.Path, "/"); vid != "" {
			return "https://youtu.be/" + vid
		}
	case "www.youtube.com", "youtube.com", "music.youtube.com", "m.youtube.com":
		if vid := u.Query().Get("v"); u.Path == "/watch" && vid != "" {
			return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
		}
	}
	return raw
}
