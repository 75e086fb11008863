package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

func TestAddExpenseNeedsAcceptedMembership(t *testing.T) {
	f := newFixture(t)
	f.user("bob", 2, domain.RoleMember)

	assert.Equal(t, []string{msgNeedMembership}, texts(f.text(2, LabelAddExpense)))
	assert.False(t, f.eng.Pending(2))
}

func TestAmountStep(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	f.group("Trip", alice)

	f.text(1, LabelAddExpense)

	for _, bad := range []string{"abc", "-5", "0", ""} {
		assert.Equal(t, []string{msgInvalidAmount}, texts(f.text(1, bad)), bad)
		s, _ := f.eng.main.Get(1)
		assert.Equal(t, StepAmount, s.Step, bad)
	}

	assert.Equal(t, []string{msgAskDescription}, texts(f.text(1, "12 000")))
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, StepDescription, s.Step)
	assert.True(t, s.Amount.Equal(decimal.NewFromInt(12000)), s.Amount.String())
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"12000":      "12000",
		"12 000":     "12000",
		" 1 234.50 ": "1234.5",
		"1\t000":     "1000",
		"0.125":      "0.125",
		"7.5000":     "7.5",
	}
	for in, want := range cases {
		got, ok := parseAmount(in)
		require.True(t, ok, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), in)
	}

	rejected := []string{
		"12,000", "abc", "", "0", "0.000", "-5", "+5", ".5", "5.",
		"1e3", "1E3", "1e50000000", "5e-7",
		"0.0001",
		"1000000000000000",
	}
	for _, in := range rejected {
		_, ok := parseAmount(in)
		assert.False(t, ok, in)
	}
	_, ok := parseAmount("999999999999999.999")
	assert.True(t, ok)
}

func TestAmountStepRejectsExponent(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	f.group("Trip", alice)

	f.text(1, LabelAddExpense)
	assert.Equal(t, []string{msgInvalidAmount}, texts(f.text(1, "1e50000000")))
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, StepAmount, s.Step)
	assert.True(t, s.Amount.IsZero())
}

func TestDescriptionAndGroupSteps(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	trip := f.group("Trip", alice)
	other := f.group("Other")
	_, err := f.store.CreateMembership(f.ctx, alice.ID, other.ID)
	require.NoError(t, err)

	f.text(1, LabelAddExpense)
	f.text(1, "300")
	assert.Equal(t, []string{msgEmptyDescription}, texts(f.text(1, "   ")))

	out := f.text(1, "Dinner")
	require.Len(t, out, 1)
	assert.Equal(t, reply.KindChoices, out[0].Kind)
	// The pending membership in "Other" is not offered.
	assert.Equal(t, []string{"Trip"}, labels(out[0]))
	assert.Equal(t, callback.New(callback.SelectGroup, trip.ID), out[0].Buttons[0][0].Data)

	assert.Equal(t, []string{msgInvalidGroup}, texts(f.text(1, other.ID)))
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, StepGroup, s.Step)
	assert.Equal(t, "Dinner", s.Description)

	out = f.text(1, trip.ID)
	require.Len(t, out, 2)
	s, _ = f.eng.main.Get(1)
	assert.Equal(t, StepVictims, s.Step)
	assert.Equal(t, trip.ID, s.GroupID)

	assert.Equal(t, []string{msgUseButtons}, texts(f.text(1, "alice")))
}

func TestVictimToggle(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	bob := f.user("bob", 2, domain.RoleMember)
	trip := f.group("Trip", alice, bob)

	f.text(1, LabelAddExpense)
	f.text(1, "300")
	f.text(1, "Dinner")
	out := f.press(1, callback.SelectGroup, trip.ID)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"alice", "bob"}, labels(out[0]))
	assert.Equal(t, []string{msgConfirmButton, msgCancelButton}, labels(out[1]))
	assert.Len(t, out[1].Buttons, 1)

	out = f.press(1, callback.SelectUser, bob.ID)
	require.Len(t, out, 1)
	assert.Equal(t, reply.KindEditChoices, out[0].Kind)
	assert.Equal(t, []string{"alice", "✅ bob"}, labels(out[0]))

	f.press(1, callback.SelectUser, alice.ID)
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, []string{bob.ID, alice.ID}, s.Selected)

	// Toggling twice restores the original set.
	f.press(1, callback.SelectUser, bob.ID)
	out = f.press(1, callback.SelectUser, bob.ID)
	s, _ = f.eng.main.Get(1)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, s.Selected)
	assert.Equal(t, []string{"✅ alice", "✅ bob"}, labels(out[0]))
	assert.Equal(t, StepVictims, s.Step)

	stranger := f.user("mallory", 3, domain.RoleMember)
	assert.Equal(t, []string{msgInvalidUser}, texts(f.press(1, callback.SelectUser, stranger.ID)))
}

func TestConfirmExpense(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	bob := f.user("bob", 2, domain.RoleMember)
	trip := f.group("Trip", alice, bob)

	assert.Equal(t, []string{msgNothingToConfirm}, texts(f.press(1, callback.ConfirmExpense, "")))

	f.text(1, LabelAddExpense)
	f.text(1, "300")
	f.text(1, "Dinner")
	f.press(1, callback.SelectGroup, trip.ID)

	// Nothing selected: rejected and the session is kept.
	assert.Equal(t, []string{msgNoVictims}, texts(f.press(1, callback.ConfirmExpense, "")))
	assert.Zero(t, f.store.ExpenseCount())
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, StepVictims, s.Step)

	f.press(1, callback.SelectUser, bob.ID)
	f.press(1, callback.SelectUser, alice.ID)
	assert.Equal(t, []string{msgExpenseAdded}, texts(f.press(1, callback.ConfirmExpense, "")))

	s, _ = f.eng.main.Get(1)
	assert.Equal(t, MainSession{}, s)

	expenses, err := f.store.ListUnsettledExpensesForGroup(f.ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	e := expenses[0]
	assert.Equal(t, alice.ID, e.OwnerID)
	assert.Equal(t, "Dinner", e.Description)
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, []string{bob.ID, alice.ID}, e.VictimIDs)
}

func TestCancelControl(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	trip := f.group("Trip", alice)

	assert.Equal(t, []string{msgNothingToCancel}, texts(f.press(1, callback.CancelExpense, "")))

	f.text(1, LabelAddExpense)
	f.text(1, "300")
	f.text(1, "Dinner")
	f.press(1, callback.SelectGroup, trip.ID)
	f.press(1, callback.SelectUser, alice.ID)

	assert.Equal(t, []string{msgExpenseCanceled}, texts(f.press(1, callback.CancelExpense, "")))
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, MainSession{}, s)
	assert.Zero(t, f.store.ExpenseCount())
}

func TestStaleSelections(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	trip := f.group("Trip", alice)

	assert.Equal(t, []string{msgSelectionStale}, texts(f.press(1, callback.SelectGroup, trip.ID)))
	assert.Equal(t, []string{msgSelectionStale}, texts(f.press(1, callback.SelectUser, alice.ID)))
	assert.Equal(t, []string{msgUseMenu}, texts(f.text(1, "random")))
}

func TestMenuLabelRestartsExpense(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	f.group("Trip", alice)

	f.text(1, LabelAddExpense)
	f.text(1, "300")
	f.text(1, LabelAddExpense)
	s, _ := f.eng.main.Get(1)
	assert.Equal(t, MainSession{Step: StepAmount}, s)
}

func TestMemberCannotUseAdminLabels(t *testing.T) {
	f := newFixture(t)
	bob := f.user("bob", 2, domain.RoleMember)
	f.group("Trip", bob)

	for _, label := range []string{LabelAcceptRequests, LabelNotify, LabelCloseExpenses} {
		assert.Equal(t, []string{msgForbidden}, texts(f.text(2, label)), label)
	}
}

func TestRootCannotUseMainText(t *testing.T) {
	f := newFixture(t)
	f.user("root", 1, domain.RoleRoot)

	out, err := f.eng.HandleMainText(f.ctx, Chat{ID: 1}, LabelAddExpense)
	require.NoError(t, err)
	assert.Equal(t, []string{msgForbidden}, texts(out))
}

func TestConcurrentTogglesAreSerialized(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	members := []domain.User{alice}
	for i := range 30 {
		members = append(members, f.user(fmt.Sprintf("user%02d", i), int64(100+i), domain.RoleMember))
	}
	trip := f.group("Trip", members...)

	f.text(1, LabelAddExpense)
	f.text(1, "300")
	f.text(1, "Dinner")
	f.press(1, callback.SelectGroup, trip.ID)

	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.eng.HandleCallback(f.ctx, Chat{ID: 1}, callback.New(callback.SelectUser, id))
			assert.NoError(t, err)
		}(m.ID)
	}
	wg.Wait()

	s, _ := f.eng.main.Get(1)
	assert.Len(t, s.Selected, len(members))
}
