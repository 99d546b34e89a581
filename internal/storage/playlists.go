package storage

import (
	"context"
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ErrNoPlaylist is returned when a named playlist does not exist.
var ErrNoPlaylist = errors.New("no such playlist")

// Track is one saved playlist entry. Stream URLs expire, so only the
// source link is kept and tracks are re-resolved on load.
type Track struct {
	Title      string
	Duration   string
	SourceLink string
}

// Playlists stores named per-guild track lists in sqlite.
type Playlists struct {
	db *sqlitex.Pool
}

const playlistSchema = `
CREATE TABLE IF NOT EXISTS playlists (
	guild    TEXT NOT NULL,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL,
	title    TEXT NOT NULL,
	duration TEXT NOT NULL,
	link     TEXT NOT NULL,
	PRIMARY KEY (guild, name, position)
) STRICT, WITHOUT ROWID;
`

// OpenPlaylists opens the pool at uri and creates the schema if needed.
func OpenPlaylists(ctx context.Context, uri string, opts sqlitex.PoolOptions) (*Playlists, error) {
	db, err := sqlitex.NewPool(uri, opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't open playlist db: %w", err)
	}
	p := &Playlists{db: db}
	if err := p.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Playlists) init(ctx context.Context) error {
	conn, err := p.db.Take(ctx)
	defer p.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to init playlists: %w", err)
	}
	return sqlitex.ExecuteScript(conn, playlistSchema, nil)
}

// Close closes the pool.
func (p *Playlists) Close() error {
	return p.db.Close()
}

// Save replaces the named playlist with tracks.
func (p *Playlists) Save(ctx context.Context, guildID, name string, tracks []Track) (err error) {
	conn, err := p.db.Take(ctx)
	defer p.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to save playlist %q: %w", name, err)
	}
	defer sqlitex.Transaction(conn)(&err)

	del := sqlitex.ExecOptions{Args: []any{guildID, name}}
	if err := sqlitex.Execute(conn, `DELETE FROM playlists WHERE guild=? AND name=?`, &del); err != nil {
		return fmt.Errorf("couldn't clear playlist %q: %w", name, err)
	}
	const insert = `INSERT INTO playlists (guild, name, position, title, duration, link) VALUES (:guild, :name, :pos, :title, :duration, :link)`
	for i, t := range tracks {
		st, err := conn.Prepare(insert)
		if err != nil {
			return fmt.Errorf("couldn't prepare playlist insert: %w", err)
		}
		st.SetText(":guild", guildID)
		st.SetText(":name", name)
		st.SetInt64(":pos", int64(i))
		st.SetText(":title", t.Title)
		st.SetText(":duration", t.Duration)
		st.SetText(":link", t.SourceLink)
		if _, err := st.Step(); err != nil {
			return fmt.Errorf("couldn't insert track %d of playlist %q: %w", i, name, err)
		}
		if err := st.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the named playlist in order.
func (p *Playlists) Load(ctx context.Context, guildID, name string) ([]Track, error) {
	conn, err := p.db.Take(ctx)
	defer p.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to load playlist %q: %w", name, err)
	}
	var tracks []Track
	opts := sqlitex.ExecOptions{
		Args: []any{guildID, name},
		ResultFunc: func(st *sqlite.Stmt) error {
			tracks = append(tracks, Track{
				Title:      st.ColumnText(0),
				Duration:   st.ColumnText(1),
				SourceLink: st.ColumnText(2),
			})
			return nil
		},
	}
	err = sqlitex.Execute(conn, `SELECT title, duration, link FROM playlists WHERE guild=? AND name=? ORDER BY position`, &opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't load playlist %q: %w", name, err)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPlaylist, name)
	}
	return tracks, nil
}

// List returns the guild's playlist names with their track counts.
func (p *Playlists) List(ctx context.Context, guildID string) (map[string]int, error) {
	conn, err := p.db.Take(ctx)
	defer p.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to list playlists: %w", err)
	}
	out := map[string]int{}
	opts := sqlitex.ExecOptions{
		Args: []any{guildID},
		ResultFunc: func(st *sqlite.Stmt) error {
			out[st.ColumnText(0)] = st.ColumnInt(1)
			return nil
		},
	}
	err = sqlitex.Execute(conn, `SELECT name, COUNT(*) FROM playlists WHERE guild=? GROUP BY name`, &opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't list playlists: %w", err)
	}
	return out, nil
}

// Delete removes the named playlist.
func (p *Playlists) Delete(ctx context.Context, guildID, name string) error {
	conn, err := p.db.Take(ctx)
	defer p.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to delete playlist %q: %w", name, err)
	}
	opts := sqlitex.ExecOptions{Args: []any{guildID, name}}
	if err := sqlitex.Execute(conn, `DELETE FROM playlists WHERE guild=? AND name=?`, &opts); err != nil {
		return fmt.Errorf("couldn't delete playlist %q: %w", name, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: %s", ErrNoPlaylist, name)
	}
	return nil
}
