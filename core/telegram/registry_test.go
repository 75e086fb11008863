package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func nopHandler(tele.Context) error { return nil }

func TestRegisterCommand(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCommand("/start", Command{Handler: nopHandler, Description: "start"}))
	assert.ErrorIs(t, r.RegisterCommand("/start", Command{Handler: nopHandler, Description: "again"}), ErrDuplicate)
	assert.ErrorIs(t, r.RegisterCommand("start", Command{Handler: nopHandler, Description: "x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.RegisterCommand("/x", Command{Description: "x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.RegisterCommand("/", Command{Handler: nopHandler, Description: "x"}), ErrInvalidRegistration)
}

func TestLookupCommand(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCommand("/start", Command{Handler: nopHandler, Description: "start"}))

	for _, text := range []string{"/start", "start", "/start@expensebot", " /start now"} {
		name, _, ok := r.LookupCommand(text)
		assert.True(t, ok, text)
		assert.Equal(t, "/start", name)
	}
	_, _, ok := r.LookupCommand("/stop")
	assert.False(t, ok)
	_, _, ok = r.LookupCommand("")
	assert.False(t, ok)
}

func TestListCommandsVisibility(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCommand("/start", Command{Handler: nopHandler, Description: "start"}))
	require.NoError(t, r.RegisterCommand("/admin", Command{Handler: nopHandler, Description: "a", AdminOnly: true}))
	require.NoError(t, r.RegisterCommand("/debug", Command{Handler: nopHandler, Description: "d", Hidden: true}))

	assert.Equal(t, []tele.Command{{Text: "/start", Description: "start"}}, r.ListCommands(true))
	assert.Len(t, r.ListCommands(false), 3)
	assert.Len(t, r.Commands(), 3)
}

func TestCallbacks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCallback("b", nopHandler))
	require.NoError(t, r.RegisterCallback("a", nopHandler))
	assert.ErrorIs(t, r.RegisterCallback("a", nopHandler), ErrDuplicate)
	assert.ErrorIs(t, r.RegisterCallback("", nopHandler), ErrInvalidRegistration)
	assert.Equal(t, []string{"a", "b"}, r.ListCallbacks())

	_, ok := r.GetCallback("missing")
	assert.False(t, ok)
	assert.NotNil(t, r.CallbackNotFound())
	r.SetCallbackNotFound(nil)
	assert.NotNil(t, r.CallbackNotFound())
}

type fakeLister struct {
	got []interface{}
	err error
}

func (f *fakeLister) SetCommands(opts ...interface{}) error {
	f.got = opts
	return f.err
}

func TestPublishCommands(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterCommand("/help", Command{Handler: nopHandler, Description: "help"}))

	api := &fakeLister{}
	require.NoError(t, r.PublishCommands(api))
	require.Len(t, api.got, 1)
	assert.Equal(t, []tele.Command{{Text: "/help", Description: "help"}}, api.got[0])

	api.err = errors.New("denied")
	assert.Error(t, r.PublishCommands(api))
}
