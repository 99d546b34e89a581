// Package storage persists per-guild settings in the JSON datastore and
// saved playlists in sqlite.
package storage

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/keshon/jukebox/internal/core"
	"github.com/keshon/jukebox/pkg/datastore"
)

const commandHistoryLimit = 20

// AllChannels is the module scope covering every channel of a guild.
const AllChannels = "all"

// Record is everything stored for one guild. Keys the bot does not model
// are kept in Unknown and written back untouched.
type Record struct {
	Aliases         map[string]string          `json:"aliases,omitempty"`
	Prefixes        map[string]string          `json:"prefixes,omitempty"`
	Modules         map[string]map[string]bool `json:"modules,omitempty"`
	AnnounceChannel string                     `json:"announce_channel,omitempty"`
	CommandsHistory []core.CommandRecord       `json:"cmd_history,omitempty"`
	Unknown         jsontext.Value             `json:",unknown"`
}

// Storage is safe for concurrent use. Updates to one guild are serialized.
type Storage struct {
	ds  *datastore.Store
	log *slog.Logger
	mu  sync.Mutex
}

// New wraps an open datastore.
func New(ds *datastore.Store, log *slog.Logger) *Storage {
	return &Storage{ds: ds, log: log}
}

// Close flushes and closes the datastore.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// Reload discards unsaved changes and rereads the settings file.
func (s *Storage) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds.Reload()
}

// Guilds returns the ids of every guild with stored settings.
func (s *Storage) Guilds() []string {
	return s.ds.Keys()
}

func (s *Storage) getGuildRecord(guildID string) (Record, error) {
	var rec Record
	if _, err := s.ds.Get(guildID, &rec); err != nil {
		return Record{}, fmt.Errorf("load settings for guild %s: %w", guildID, err)
	}
	return rec, nil
}

// update applies fn to the guild's record and stores the result.
func (s *Storage) update(guildID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return err
	}
	fn(&rec)
	return s.ds.Put(guildID, rec)
}

// read returns the guild's record, logging and returning an empty record
// when it cannot be decoded.
func (s *Storage) read(guildID string) Record {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		s.log.Warn("using default settings", slog.String("guild", guildID), slog.Any("err", err))
	}
	return rec
}
