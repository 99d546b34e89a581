package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/music"
	"github.com/keshon/jukebox/internal/storage"
)

// playlistLoaders bounds concurrent re-resolution of saved tracks.
const playlistLoaders = 4

func (h *musicHandlers) playlist(ctx context.Context, c core.Context, args []string) error {
	const u = "playlist save|load|list|delete <name>"
	if len(args) == 0 {
		return h.usage(c, u)
	}
	sub := strings.ToLower(args[0])
	if sub == "list" {
		return h.listPlaylists(ctx, c)
	}
	if len(args) < 2 {
		return h.usage(c, u)
	}
	name := strings.ToLower(strings.Join(args[1:], " "))

	if sub == "save" || sub == "delete" {
		if ok, err := core.CheckRoles(c, h.d.Config.IsBotAdmin, h.d.Config.DJRole); err != nil || !ok {
			return err
		}
	}
	switch sub {
	case "save":
		return h.savePlaylist(ctx, c, name)
	case "load":
		return h.loadPlaylist(ctx, c, name)
	case "delete":
		err := h.d.Playlists.Delete(ctx, c.GuildID(), name)
		if errors.Is(err, storage.ErrNoPlaylist) {
			return replied(core.Warn(c, "There is no playlist called **%s**.", name))
		}
		if err != nil {
			return err
		}
		return replied(core.Success(c, "Deleted playlist **%s**.", name))
	}
	return h.usage(c, u)
}

func (h *musicHandlers) savePlaylist(ctx context.Context, c core.Context, name string) error {
	st := h.d.Music.Status(c.GuildID())
	tracks := make([]storage.Track, 0, len(st.Queue))
	for _, e := range st.Queue {
		if !e.Valid() || e.SourceLink == "" {
			continue
		}
		tracks = append(tracks, storage.Track{Title: e.Title, Duration: e.Duration, SourceLink: e.SourceLink})
	}
	if len(tracks) == 0 {
		return replied(core.Warn(c, "The queue is empty; there is nothing to save."))
	}
	if err := h.d.Playlists.Save(ctx, c.GuildID(), name, tracks); err != nil {
		return err
	}
	return replied(core.Success(c, "Saved %s as **%s**.", plural(len(tracks), "track"), name))
}

func (h *musicHandlers) loadPlaylist(ctx context.Context, c core.Context, name string) error {
	tracks, err := h.d.Playlists.Load(ctx, c.GuildID(), name)
	if errors.Is(err, storage.ErrNoPlaylist) {
		return replied(core.Warn(c, "There is no playlist called **%s**.", name))
	}
	if err != nil {
		return err
	}

	entries := make([]music.Entry, len(tracks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(playlistLoaders)
	for i, t := range tracks {
		g.Go(func() error {
			resolved, err := h.d.Tracks.Resolve(gctx, t.SourceLink, c.AuthorID())
			if err != nil || len(resolved) == 0 {
				h.d.Log.Debug("saved track unavailable", slog.String("link", t.SourceLink), tint.Err(err))
				entries[i] = music.Entry{Title: t.Title, Duration: t.Duration, StreamURL: music.InvalidStream, SourceLink: t.SourceLink}
				return nil
			}
			entries[i] = resolved[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return h.enqueue(ctx, c, entries)
}

func (h *musicHandlers) listPlaylists(ctx context.Context, c core.Context) error {
	lists, err := h.d.Playlists.List(ctx, c.GuildID())
	if err != nil {
		return err
	}
	if len(lists) == 0 {
		return replied(core.Info(c, "No playlists saved yet."))
	}
	names := make([]string, 0, len(lists))
	for n := range lists {
		names = append(names, n)
	}
	slices.Sort(names)
	var sb strings.Builder
	for _, n := range names {
		fmt.Fprintf(&sb, "**%s** · %s\n", n, plural(lists[n], "track"))
	}
	_, err = c.Reply(core.Embed(core.EmbedColor, "📜 Playlists", sb.String()))
	return err
}
