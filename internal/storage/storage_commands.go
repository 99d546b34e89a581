package storage

import (
	"strings"

	"github.com/keshon/jukebox/internal/core"
)

// Prefixes implements core.Settings.
func (s *Storage) Prefixes(guildID string) map[string]string {
	return s.read(guildID).Prefixes
}

// Aliases implements core.Settings.
func (s *Storage) Aliases(guildID string) map[string]string {
	return s.read(guildID).Aliases
}

// ModuleEnabled implements core.Settings. A module is enabled unless it is
// switched off for the whole guild or for the channel.
func (s *Storage) ModuleEnabled(guildID, channelID, module string) bool {
	rec := s.read(guildID)
	for _, scope := range []string{AllChannels, channelID} {
		if on, ok := rec.Modules[scope][module]; ok && !on {
			return false
		}
	}
	return true
}

// ModuleSetting returns the stored switch for module in scope and whether
// one is stored at all.
func (s *Storage) ModuleSetting(guildID, scope, module string) (on, set bool) {
	on, set = s.read(guildID).Modules[scope][module]
	return on, set
}

// SetPrefix overrides a category prefix. An empty prefix restores the default.
func (s *Storage) SetPrefix(guildID, category, prefix string) error {
	return s.update(guildID, func(r *Record) {
		if prefix == "" {
			delete(r.Prefixes, category)
			return
		}
		if r.Prefixes == nil {
			r.Prefixes = map[string]string{}
		}
		r.Prefixes[category] = prefix
	})
}

// SetAlias maps token to a command string. An empty expansion removes it.
func (s *Storage) SetAlias(guildID, token, expansion string) error {
	token = strings.ToLower(token)
	return s.update(guildID, func(r *Record) {
		if expansion == "" {
			delete(r.Aliases, token)
			return
		}
		if r.Aliases == nil {
			r.Aliases = map[string]string{}
		}
		r.Aliases[token] = expansion
	})
}

// SetModule switches a module on or off for scope, a channel id or AllChannels.
func (s *Storage) SetModule(guildID, scope, module string, enabled bool) error {
	return s.update(guildID, func(r *Record) {
		if r.Modules == nil {
			r.Modules = map[string]map[string]bool{}
		}
		if r.Modules[scope] == nil {
			r.Modules[scope] = map[string]bool{}
		}
		r.Modules[scope][module] = enabled
	})
}

// AppendCommand implements core.CommandLog, keeping the most recent entries.
func (s *Storage) AppendCommand(guildID string, rec core.CommandRecord) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistory = append(r.CommandsHistory, rec)
		if n := len(r.CommandsHistory); n > commandHistoryLimit {
			r.CommandsHistory = r.CommandsHistory[n-commandHistoryLimit:]
		}
	})
}

// CommandHistory returns the guild's recent commands, oldest first.
func (s *Storage) CommandHistory(guildID string) ([]core.CommandRecord, error) {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return rec.CommandsHistory, nil
}
