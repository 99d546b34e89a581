// Package sources turns user input (links or search text) into queue
// entries with resolved stream URLs.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music"
)

// ErrNoMatch is returned when no source accepts the input.
var ErrNoMatch = errors.New("no matching source found")

// Source resolves one kind of input.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Match reports whether the source handles input.
	Match(input string) bool
	// Resolve turns input into one or more entries. Entries that cannot be
	// streamed carry music.InvalidStream instead of failing the whole call.
	Resolve(ctx context.Context, input string) ([]music.Entry, error)
}

// Resolver picks a source for each input.
type Resolver struct {
	// Search handles free text.
	Search Source
	// Links are tried in order for URLs.
	Links []Source
}

// Resolve resolves input and stamps every entry with requesterID.
func (r *Resolver) Resolve(ctx context.Context, input, requesterID string) ([]music.Entry, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("empty input")
	}

	src := r.pick(input)
	if src == nil {
		return nil, ErrNoMatch
	}
	entries, err := src.Resolve(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	for i := range entries {
		entries[i].RequesterID = requesterID
	}
	return entries, nil
}

func (r *Resolver) pick(input string) Source {
	if !IsURL(input) {
		return r.Search
	}
	for _, s := range r.Links {
		if s.Match(input) {
			return s
		}
	}
	return nil
}

// IsURL reports whether s is an http(s) link.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// FormatDuration renders d as H:MM:SS.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
