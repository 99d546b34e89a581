package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"

	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/internal/music"
)

// queuePreview is how many upcoming entries the queue command lists.
const queuePreview = 10

var rejectionMessages = map[string]string{
	music.KeyVoiceRequired:      "You need to be in a voice channel to use this command.",
	music.KeyMissingPermissions: "I can't join <#{channel}>. Check my permissions for that channel.",
	music.KeyAlone:              "Nobody is listening. I won't resume in an empty channel.",
	music.KeyNotInChannel:       "You need to be in <#{channel}> to vote.",
	music.KeyDeafened:           "Deafened listeners can't vote.",
}

// rejectionText renders a rejection with its placeholders filled in.
func rejectionText(r *music.Rejection) string {
	msg, ok := rejectionMessages[r.Key]
	if !ok {
		msg = r.Key
	}
	for k, v := range r.Placeholders {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

// musicError turns expected music failures into warnings and passes
// anything else through.
func musicError(c core.Context, err error) error {
	if r, ok := music.AsRejection(err); ok {
		return replied(core.Warn(c, "%s", rejectionText(r)))
	}
	switch {
	case errors.Is(err, music.ErrNothingPlaying), errors.Is(err, music.ErrNotConnected):
		return replied(core.Warn(c, "Nothing is playing right now."))
	case errors.Is(err, music.ErrAlreadyPaused):
		return replied(core.Warn(c, "Playback is already paused."))
	case errors.Is(err, music.ErrNotPaused):
		return replied(core.Warn(c, "Playback isn't paused."))
	}
	return err
}

func request(c core.Context) music.Request {
	return music.Request{GuildID: c.GuildID(), TextChannelID: c.ChannelID(), UserID: c.AuthorID()}
}

func musicCommands(d *Deps) []core.Factory {
	dj := core.MiddlewareHasRole + ":" + d.Config.DJRole
	m := &musicHandlers{d: d}
	desc := func(name, description, usage string, triggers []string, h func(context.Context, core.Context, []string) error, mw ...string) core.Factory {
		return func() *core.Descriptor {
			return &core.Descriptor{
				Name:        name,
				Category:    config.CategoryMusic,
				Description: description,
				Usage:       usage,
				Triggers:    triggers,
				Middleware:  mw,
				Handler:     handler(h),
			}
		}
	}
	return []core.Factory{
		desc("play", "Play a track, playlist or search result", "play <url|query>", []string{"play", "p"}, m.play, "throttle.user:3,10", core.MiddlewareHistory),
		desc("pause", "Pause playback", "pause", []string{"pause"}, m.pause),
		desc("resume", "Resume playback", "resume", []string{"resume", "unpause"}, m.resume),
		desc("skip", "Skip the current track", "skip", []string{"skip", "next"}, m.skip, dj),
		desc("voteskip", "Vote to skip the current track", "voteskip", []string{"voteskip", "vs"}, m.voteskip, "throttle.user:1,3"),
		desc("shuffle", "Shuffle the upcoming tracks", "shuffle", []string{"shuffle"}, m.shuffle, dj),
		desc("volume", "Show or set the volume", "volume [0-100]", []string{"volume", "vol"}, m.volume, dj),
		desc("repeat", "Toggle repeat mode", "repeat", []string{"repeat", "loop"}, m.repeat, dj),
		desc("queue", "Show the queue", "queue", []string{"queue", "q"}, m.queue, "throttle.channel:2,5"),
		desc("nowplaying", "Show the current track", "nowplaying", []string{"nowplaying", "np"}, m.nowPlaying),
		desc("leave", "Stop playback and leave the voice channel", "leave", []string{"leave", "stop"}, m.leave, dj),
		desc("playlist", "Save, load, list or delete playlists", "playlist save|load|list|delete <name>", []string{"playlist", "pl"}, m.playlist, "throttle.user:3,10", core.MiddlewareHistory),
	}
}

type musicHandlers struct {
	d *Deps
}

func (h *musicHandlers) usage(c core.Context, u string) error {
	return usage(c, prefixIn(h.d, c, config.CategoryMusic), u)
}

func (h *musicHandlers) play(ctx context.Context, c core.Context, args []string) error {
	if len(args) == 0 {
		return h.usage(c, "play <url|query>")
	}
	entries, err := h.d.Tracks.Resolve(ctx, strings.Join(args, " "), c.AuthorID())
	if err != nil {
		h.d.Log.Info("track resolution failed", slog.String("query", strings.Join(args, " ")), tint.Err(err))
		return replied(core.Warn(c, "I couldn't find anything playable for that."))
	}
	return h.enqueue(ctx, c, entries)
}

func (h *musicHandlers) enqueue(ctx context.Context, c core.Context, entries []music.Entry) error {
	playable := slices.DeleteFunc(slices.Clone(entries), func(e music.Entry) bool { return !e.Valid() })
	if len(playable) == 0 {
		return replied(core.Warn(c, "None of those tracks can be played."))
	}
	req := request(c)
	if err := h.d.Music.PrepareVoice(ctx, req); err != nil {
		return musicError(c, err)
	}
	if err := h.d.Music.Enqueue(ctx, req, playable...); err != nil {
		return musicError(c, err)
	}
	if len(entries) == 1 {
		return replied(core.Success(c, "Added **%s** to the queue.", playable[0].Title))
	}
	if skipped := len(entries) - len(playable); skipped > 0 {
		return replied(core.Success(c, "Added %s to the queue, %d unavailable.", plural(len(playable), "track"), skipped))
	}
	return replied(core.Success(c, "Added %s to the queue.", plural(len(playable), "track")))
}

func (h *musicHandlers) pause(_ context.Context, c core.Context, _ []string) error {
	if err := h.d.Music.Pause(c.GuildID()); err != nil {
		return musicError(c, err)
	}
	return replied(core.Success(c, "⏸️ Paused."))
}

func (h *musicHandlers) resume(_ context.Context, c core.Context, _ []string) error {
	if err := h.d.Music.Resume(c.GuildID()); err != nil {
		return musicError(c, err)
	}
	return replied(core.Success(c, "▶️ Resumed."))
}

func (h *musicHandlers) skip(ctx context.Context, c core.Context, _ []string) error {
	e, err := h.d.Music.Skip(ctx, c.GuildID())
	if err != nil {
		return musicError(c, err)
	}
	return replied(core.Success(c, "⏭️ Skipped **%s**.", e.Title))
}

func (h *musicHandlers) voteskip(ctx context.Context, c core.Context, _ []string) error {
	res, err := h.d.Music.VoteSkip(ctx, request(c))
	if err != nil {
		return musicError(c, err)
	}
	switch {
	case res.Skipped:
		return replied(core.Success(c, "⏭️ Vote passed with %d of %d listeners. Skipping.", res.Votes, res.Listeners))
	case res.HasVotedBefore:
		return replied(core.Warn(c, "You already voted. %s more needed.", plural(res.NeededVotes, "vote")))
	default:
		return replied(core.Info(c, "Vote registered (%.0f%%). %s more needed to skip.", res.Percentage, plural(res.NeededVotes, "vote")))
	}
}

func (h *musicHandlers) shuffle(_ context.Context, c core.Context, _ []string) error {
	if err := h.d.Music.ShuffleQueue(c.GuildID()); err != nil {
		return musicError(c, err)
	}
	return replied(core.Success(c, "🔀 Queue shuffled."))
}

func (h *musicHandlers) volume(_ context.Context, c core.Context, args []string) error {
	if len(args) == 0 {
		st := h.d.Music.Status(c.GuildID())
		return replied(core.Info(c, "🔊 Volume is %d%%.", st.Volume))
	}
	v, err := strconv.Atoi(strings.TrimSuffix(args[0], "%"))
	if err != nil {
		return h.usage(c, "volume [0-100]")
	}
	applied, err := h.d.Music.SetVolume(c.GuildID(), v)
	if err != nil {
		return musicError(c, err)
	}
	return replied(core.Success(c, "🔊 Volume set to %d%%.", applied))
}

func (h *musicHandlers) repeat(_ context.Context, c core.Context, _ []string) error {
	on, err := h.d.Music.ToggleRepeat(c.GuildID())
	if err != nil {
		return musicError(c, err)
	}
	if on {
		return replied(core.Success(c, "🔁 Repeat is on."))
	}
	return replied(core.Success(c, "🔁 Repeat is off."))
}

func (h *musicHandlers) queue(_ context.Context, c core.Context, _ []string) error {
	st := h.d.Music.Status(c.GuildID())
	if len(st.Queue) == 0 {
		return replied(core.Info(c, "The queue is empty."))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Now:** %s\n", entryLine(st.Queue[0]))
	for i, e := range st.Queue[1:min(len(st.Queue), queuePreview+1)] {
		fmt.Fprintf(&sb, "`%d.` %s\n", i+1, entryLine(e))
	}
	if rest := len(st.Queue) - 1 - queuePreview; rest > 0 {
		fmt.Fprintf(&sb, "…and %d more\n", rest)
	}
	fmt.Fprintf(&sb, "\nVolume %d%% · Repeat %s", st.Volume, onOff(st.Repeat))
	_, err := c.Reply(core.Embed(core.EmbedColor, "🎵 Queue", sb.String()))
	return err
}

func (h *musicHandlers) nowPlaying(_ context.Context, c core.Context, _ []string) error {
	st := h.d.Music.Status(c.GuildID())
	if len(st.Queue) == 0 {
		return musicError(c, music.ErrNothingPlaying)
	}
	_, err := c.Reply(NowPlayingEmbed(st.Queue[0]))
	return err
}

func (h *musicHandlers) leave(_ context.Context, c core.Context, _ []string) error {
	if err := h.d.Music.Leave(c.GuildID()); err != nil {
		return musicError(c, err)
	}
	return replied(core.Success(c, "👋 Left the voice channel."))
}

// NowPlayingEmbed announces e.
func NowPlayingEmbed(e music.Entry) *discordgo.MessageEmbed {
	return core.Embed(core.EmbedColor, "▶️ Now Playing", entryLine(e))
}

func entryLine(e music.Entry) string {
	title := e.Title
	if title == "" {
		title = "Unknown track"
	}
	if e.SourceLink != "" {
		title = fmt.Sprintf("[%s](%s)", title, e.SourceLink)
	}
	if e.Duration != "" {
		title += " `" + e.Duration + "`"
	}
	if e.RequesterID != "" {
		title += " · <@" + e.RequesterID + ">"
	}
	return title
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
