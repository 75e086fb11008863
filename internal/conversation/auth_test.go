package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/credential"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/notify"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	chat := Chat{ID: 100, Handle: "bob_tg"}

	out, err := f.eng.HandleCallback(f.ctx, chat, callback.New(callback.Register, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{msgAskUsername}, texts(out))
	assert.True(t, f.eng.Pending(chat.ID))

	out, err = f.eng.HandleText(f.ctx, chat, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{msgAskPassword}, texts(out))

	out, err = f.eng.HandleText(f.ctx, chat, "secret")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "pending approval")
	assert.False(t, f.eng.Pending(chat.ID))

	u, err := f.store.FindUserByUsername(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, u.ChatID)
	assert.Equal(t, "bob_tg", u.TelegramUsername)
	assert.Equal(t, "secret", u.Password)
	assert.Equal(t, domain.RoleMember, u.Role)
	assert.False(t, u.IsAccepted)
}

func TestRegisterTakenUsernameReprompts(t *testing.T) {
	f := newFixture(t)
	bob := f.user("bob", 1, domain.RoleMember)

	f.press(200, callback.Register, "")
	for i := 0; i < 2; i++ {
		assert.Equal(t, []string{msgUsernameTaken}, texts(f.text(200, "bob")), "attempt %d", i+1)

		s, ok := f.eng.auth.Get(200)
		require.True(t, ok)
		assert.Equal(t, AwaitingUsername, s.Step)
		assert.Equal(t, AuthRegister, s.Kind)
		assert.Empty(t, s.Username)
	}

	// Still exactly one "bob", bound to the original chat.
	u, err := f.store.FindUserByUsername(f.ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, u.ID)
	assert.Equal(t, int64(1), u.ChatID)
	_, err = f.store.FindUserByChatID(f.ctx, 200)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	pending, err := f.store.FindPendingUsers(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []string{msgAskPassword}, texts(f.text(200, "bobby")))
}

func TestRegisterSelectionWithExistingAccount(t *testing.T) {
	f := newFixture(t)
	f.user("bob", 1, domain.RoleMember)

	out := f.press(1, callback.Register, "")
	assert.Contains(t, out[0].Text, "already have an account")
	assert.False(t, f.eng.Pending(1))
}

func TestRegisterHashesWithBcrypt(t *testing.T) {
	f := newFixture(t)
	verifier := credential.Bcrypt{Cost: 4}
	f.eng = New(Options{Store: f.store, Verifier: verifier, Notifier: notify.NewDispatcher(f.out)})

	f.press(5, callback.Register, "")
	f.text(5, "dave")
	f.text(5, "hunter2")

	u, err := f.store.FindUserByUsername(f.ctx, "dave")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", u.Password)
	assert.True(t, verifier.Match(u.Password, "hunter2"))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)

	// Account created elsewhere, logging in from a fresh chat.
	chat := Chat{ID: 300, Handle: "alice_tg"}
	f.press(chat.ID, callback.Login, "")
	f.text(chat.ID, "alice")

	out := f.text(chat.ID, "wrong")
	assert.Equal(t, []string{msgInvalidLogin, msgAskUsername}, texts(out))
	s, ok := f.eng.auth.Get(chat.ID)
	require.True(t, ok)
	assert.Equal(t, AuthSession{Step: AwaitingUsername, Kind: AuthLogin}, s)

	f.text(chat.ID, "alice")
	out, err := f.eng.HandleText(f.ctx, chat, "alice-pw")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "You successfully logged in. 🎉 Your role is MEMBER", out[0].Text)
	assert.Equal(t, reply.KindMenu, out[1].Kind)
	assert.False(t, f.eng.Pending(chat.ID))

	u, err := f.store.FindUserByID(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, u.ChatID)
	assert.Equal(t, "alice_tg", u.TelegramUsername)
}

func TestLoginUnknownUsername(t *testing.T) {
	f := newFixture(t)

	f.press(9, callback.Login, "")
	f.text(9, "ghost")
	assert.Equal(t, []string{msgInvalidLogin, msgAskUsername}, texts(f.text(9, "x")))
	assert.True(t, f.eng.Pending(9))
}

func TestLoginUnacceptedReportsPending(t *testing.T) {
	f := newFixture(t)
	f.store.SeedUser(domain.User{Username: "carol", Password: "pw", ChatID: 1})

	f.press(400, callback.Login, "")
	f.text(400, "carol")
	out := f.text(400, "pw")
	require.Len(t, out, 2)
	assert.Contains(t, out[1].Text, "not yet accepted")
	assert.False(t, f.eng.Pending(400))
}

func TestStartClearsAuthSession(t *testing.T) {
	f := newFixture(t)

	f.press(8, callback.Register, "")
	f.text(8, "eve")
	_, err := f.eng.Start(f.ctx, Chat{ID: 8})
	require.NoError(t, err)
	assert.False(t, f.eng.Pending(8))
}

func TestHandleAuthTextWithoutSession(t *testing.T) {
	f := newFixture(t)

	out, err := f.eng.HandleAuthText(f.ctx, Chat{ID: 1}, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{msgStartFirst}, texts(out))
}
