package core

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type fakeContext struct {
	guild, channel, author string
	private                bool
	userPerms, botPerms    int64
	roles                  []string

	mu      sync.Mutex
	replies []*discordgo.MessageEmbed
	deleted []string
}

func guildCtx(author string) *fakeContext {
	return &fakeContext{guild: "g1", channel: "c1", author: author}
}

func dmCtx(author string) *fakeContext {
	return &fakeContext{channel: "dm-" + author, author: author, private: true}
}

func (f *fakeContext) GuildID() string                 { return f.guild }
func (f *fakeContext) ChannelID() string               { return f.channel }
func (f *fakeContext) AuthorID() string                { return f.author }
func (f *fakeContext) AuthorName() string              { return "name-" + f.author }
func (f *fakeContext) MessageID() string               { return "m0" }
func (f *fakeContext) IsPrivate() bool                 { return f.private }
func (f *fakeContext) UserPermissions() (int64, error) { return f.userPerms, nil }
func (f *fakeContext) BotPermissions() (int64, error)  { return f.botPerms, nil }
func (f *fakeContext) RoleNames() ([]string, error)    { return f.roles, nil }

func (f *fakeContext) Reply(e *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, e)
	return "r" + strconv.Itoa(len(f.replies)), nil
}

func (f *fakeContext) DeleteMessage(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeContext) Replies() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), f.replies...)
}

func (f *fakeContext) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeSettings struct {
	prefixes map[string]string
	aliases  map[string]string
	disabled map[string]bool
}

func (s *fakeSettings) Prefixes(string) map[string]string { return s.prefixes }
func (s *fakeSettings) Aliases(string) map[string]string  { return s.aliases }
func (s *fakeSettings) ModuleEnabled(_, _, module string) bool {
	return !s.disabled[module]
}
