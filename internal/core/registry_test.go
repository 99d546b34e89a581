package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/pkg/cmd"
)

func prefixes(category string) string {
	if category == "administration" {
		return "."
	}
	return "!"
}

func newTestRegistry(executed func()) *Registry {
	return NewRegistry(cmd.NewRegistry(), prefixes, executed, logging.Discard())
}

func describe(name, category string, triggers ...string) Factory {
	return func() *Descriptor {
		return &Descriptor{
			Name:     name,
			Category: category,
			Triggers: triggers,
			Handler:  HandlerFunc(func(context.Context, Context, []string) error { return nil }),
		}
	}
}

func TestRegisterRejectsDuplicateTrigger(t *testing.T) {
	r := newTestRegistry(nil)
	err := r.Register(
		describe("play", "music", "play", "p"),
		describe("pause", "music", "pause", "P"),
	)
	var dup *DuplicateTriggerError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "!p", dup.Trigger)
	assert.Equal(t, "play", dup.First)
	assert.Equal(t, "pause", dup.Second)

	assert.Empty(t, r.Entries())
	assert.Nil(t, r.Match("!play", nil))
	assert.Nil(t, r.Match("!pause", nil))
}

func TestRegisterRejectsCollisionWithExisting(t *testing.T) {
	r := newTestRegistry(nil)
	require.NoError(t, r.Register(describe("ping", "utility", "ping")))
	err := r.Register(describe("pong", "music", "pong"), describe("ping2", "music", "ping"))
	var dup *DuplicateTriggerError
	require.ErrorAs(t, err, &dup)
	assert.Nil(t, r.Match("!pong", nil))
}

func TestSameTriggerDifferentPrefix(t *testing.T) {
	r := newTestRegistry(nil)
	require.NoError(t, r.Register(
		describe("music-help", "music", "info"),
		describe("admin-help", "administration", "info"),
	))
	assert.Equal(t, "music-help", r.Match("!info", nil).Descriptor().Name)
	assert.Equal(t, "admin-help", r.Match(".info", nil).Descriptor().Name)
}

func TestMatchWithOverrides(t *testing.T) {
	r := newTestRegistry(nil)
	require.NoError(t, r.Register(describe("ban", "administration", "ban")))

	assert.NotNil(t, r.Match(".ban", nil))
	overrides := map[string]string{"administration": "$"}
	assert.NotNil(t, r.Match("$ban", overrides))
	assert.Nil(t, r.Match(".ban", overrides))
}

func TestRoutes(t *testing.T) {
	r := newTestRegistry(nil)
	require.NoError(t, r.Register(describe("play", "music", "Play", "p")))
	var got []string
	for _, rt := range r.Routes() {
		got = append(got, rt.Prefix+rt.Trigger)
	}
	if diff := cmp.Diff([]string{"!play", "!p"}, got); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestReloadPreservesIdentity(t *testing.T) {
	r := newTestRegistry(nil)
	version := 0
	factory := func() *Descriptor {
		version++
		trig := "old"
		if version > 1 {
			trig = "new"
		}
		return &Descriptor{
			Name:     "cmd",
			Category: "utility",
			Triggers: []string{trig},
			Handler:  HandlerFunc(func(context.Context, Context, []string) error { return nil }),
		}
	}
	require.NoError(t, r.Register(factory))
	before, ok := r.Lookup("cmd")
	require.True(t, ok)

	require.NoError(t, r.Reload("cmd"))
	after, _ := r.Lookup("cmd")
	assert.Same(t, before, after)
	assert.Equal(t, []string{"new"}, before.Descriptor().Triggers)
	assert.Nil(t, r.Match("!old", nil))
	assert.Same(t, before, r.Match("!new", nil))
}

func TestReloadCollisionKeepsOld(t *testing.T) {
	r := newTestRegistry(nil)
	calls := 0
	require.NoError(t, r.Register(
		describe("other", "utility", "taken"),
		func() *Descriptor {
			calls++
			trig := "mine"
			if calls > 1 {
				trig = "taken"
			}
			return &Descriptor{Name: "cmd", Category: "utility", Triggers: []string{trig},
				Handler: HandlerFunc(func(context.Context, Context, []string) error { return nil })}
		},
	))
	var dup *DuplicateTriggerError
	require.ErrorAs(t, r.Reload("cmd"), &dup)
	assert.Equal(t, "cmd", r.Match("!mine", nil).Descriptor().Name)
	assert.Equal(t, "other", r.Match("!taken", nil).Descriptor().Name)
}

func TestReloadUnknown(t *testing.T) {
	r := newTestRegistry(nil)
	assert.ErrorIs(t, r.Reload("nope"), ErrUnknownCommand)
}

func TestRegisterRejectsInvalidMiddlewareArgs(t *testing.T) {
	g := &Guards{}
	r := NewRegistry(NewMiddlewareRegistry(g), prefixes, nil, logging.Discard())
	err := r.Register(func() *Descriptor {
		d := describe("x", "utility", "x")()
		d.Middleware = []string{"throttle.user:two,5"}
		return d
	})
	assert.ErrorContains(t, err, "maxAttempts")
	assert.Empty(t, r.Entries())
}
