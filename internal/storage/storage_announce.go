package storage

import "errors"

// ErrNoAnnounceChannel is returned when a guild has not chosen a channel.
var ErrNoAnnounceChannel = errors.New("no announce channel set")

// SetAnnounceChannel chooses where broadcasts reach this guild.
func (s *Storage) SetAnnounceChannel(guildID, channelID string) error {
	return s.update(guildID, func(r *Record) { r.AnnounceChannel = channelID })
}

// AnnounceChannel returns the guild's broadcast channel.
func (s *Storage) AnnounceChannel(guildID string) (string, error) {
	rec, err := s.getGuildRecord(guildID)
	if err != nil {
		return "", err
	}
	if rec.AnnounceChannel == "" {
		return "", ErrNoAnnounceChannel
	}
	return rec.AnnounceChannel, nil
}

// AnnounceChannels maps every guild with a broadcast channel to it.
func (s *Storage) AnnounceChannels() map[string]string {
	out := map[string]string{}
	for _, g := range s.Guilds() {
		if ch, err := s.AnnounceChannel(g); err == nil {
			out[g] = ch
		}
	}
	return out
}
