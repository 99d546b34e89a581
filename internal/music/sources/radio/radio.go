// Package radio accepts direct audio links and internet radio streams.
package radio

import (
	"context"
	"net/url"
	"path"

	"github.com/keshon/jukebox/internal/music"
)

// Source streams any link serving audio, as-is.
type Source struct {
	probe *Prober
}

// New returns a radio source.
func New() *Source {
	return &Source{probe: NewProber()}
}

func (s *Source) Name() string { return "radio" }

// Match accepts every link; probing happens in Resolve.
func (s *Source) Match(input string) bool {
	u, err := url.Parse(input)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Source) Resolve(ctx context.Context, input string) ([]music.Entry, error) {
	finalURL, err := s.probe.Check(ctx, input)
	if err != nil {
		return nil, err
	}
	return []music.Entry{{
		Title:      title(finalURL),
		Duration:   "live",
		StreamURL:  finalURL,
		SourceLink: input,
	}}, nil
}

// title names a stream after the last path element, or the host.
func title(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if base := path.Base(u.Path); base != "." && base != "/" {
		return u.Host + "/" + base
	}
	return u.Host
}
