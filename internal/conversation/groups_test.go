package conversation

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/notify"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

func TestJoinAndApprove(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleAdmin)
	bob := f.user("bob", 2, domain.RoleMember)
	trip := f.group("Trip", alice)
	f.group("Home", bob)

	out := f.text(2, LabelJoinGroup)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"Trip"}, labels(out[0]))

	assert.Equal(t, []string{fmt.Sprintf(msgJoinRequested, "Trip")}, texts(f.press(2, callback.JoinGroup, trip.ID)))
	assert.Equal(t, []string{msgAlreadyRequested}, texts(f.press(2, callback.JoinGroup, trip.ID)))
	assert.Equal(t, []string{msgNoGroupsToJoin}, texts(f.text(2, LabelJoinGroup)))
	assert.Equal(t, []string{msgNotFound}, texts(f.press(2, callback.JoinGroup, "missing")))

	out = f.text(1, LabelAcceptRequests)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"bob wants to join the group Trip 📩"}, labels(out[0]))
	membershipID := out[0].Buttons[0][0].Data.ID

	// Requesters cannot approve themselves.
	assert.Equal(t, []string{msgForbidden}, texts(f.press(2, callback.ApproveMember, membershipID)))

	assert.Equal(t, []string{msgJoinApproved}, texts(f.press(1, callback.ApproveMember, membershipID)))
	m, err := f.store.FindMembership(f.ctx, bob.ID, trip.ID)
	require.NoError(t, err)
	assert.True(t, m.IsAccepted)

	dm := f.out.to(bob.ChatID)
	require.Len(t, dm, 1)
	assert.Equal(t, msgJoinApprovedDM, dm[0].Text)

	assert.Equal(t, []string{"User bob is already a member of Trip"}, texts(f.press(1, callback.ApproveMember, membershipID)))
	assert.Len(t, f.out.to(bob.ChatID), 1)
	assert.Equal(t, []string{msgNoPendingJoins}, texts(f.text(1, LabelAcceptRequests)))
}

func TestApproveSurvivesDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleAdmin)
	bob := f.user("bob", 2, domain.RoleMember)
	trip := f.group("Trip", alice)
	m, err := f.store.CreateMembership(f.ctx, bob.ID, trip.ID)
	require.NoError(t, err)
	f.out.fail[bob.ChatID] = true

	assert.Equal(t, []string{msgJoinApproved}, texts(f.press(1, callback.ApproveMember, m.ID)))
}

func TestAdminOutsideGroupCannotApprove(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleAdmin)
	bob := f.user("bob", 2, domain.RoleMember)
	f.group("Home", alice)
	trip := f.group("Trip")
	m, err := f.store.CreateMembership(f.ctx, bob.ID, trip.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{msgNoPendingJoins}, texts(f.text(1, LabelAcceptRequests)))
	assert.Equal(t, []string{msgForbidden}, texts(f.press(1, callback.ApproveMember, m.ID)))
}

// seedTrip records the three-person trip: alice paid 300 for all three,
// bob paid 90 for bob and carol.
func seedTrip(t *testing.T, f *fixture) (alice, bob, carol domain.User, trip domain.Group) {
	t.Helper()
	alice = f.user("alice", 1, domain.RoleAdmin)
	bob = f.user("bob", 2, domain.RoleMember)
	carol = f.user("carol", 3, domain.RoleMember)
	trip = f.group("Trip", alice, bob, carol)

	_, err := f.store.CreateExpense(f.ctx, domain.NewExpense{
		Amount: decimal.NewFromInt(300), Description: "Hotel",
		OwnerID: alice.ID, GroupID: trip.ID,
		VictimIDs: []string{alice.ID, bob.ID, carol.ID},
	})
	require.NoError(t, err)
	_, err = f.store.CreateExpense(f.ctx, domain.NewExpense{
		Amount: decimal.NewFromInt(90), Description: "Taxi",
		OwnerID: bob.ID, GroupID: trip.ID,
		VictimIDs: []string{bob.ID, carol.ID},
	})
	require.NoError(t, err)
	return alice, bob, carol, trip
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	alice, _, carol, trip := seedTrip(t, f)

	out := f.text(carol.ChatID, LabelHistory)
	require.Len(t, out, 1)
	assert.Equal(t, fmt.Sprintf(msgPickGroupFor, "view"), out[0].Text)
	assert.Equal(t, callback.New(callback.HistoryGroup, trip.ID), out[0].Buttons[0][0].Data)

	out = f.press(carol.ChatID, callback.HistoryGroup, trip.ID)
	require.Len(t, out, 5)
	assert.Equal(t, msgExpensesHeader, out[0].Text)
	assert.Contains(t, out[1].Text, "Amount: 300 \nDescription: Hotel \nOwner: alice \nVictims: [ alice, bob, carol ]")
	assert.Contains(t, out[2].Text, "Description: Taxi")
	assert.Contains(t, out[3].Text, "📉 Financial Summary:")
	assert.Contains(t, out[3].Text, "carol owes: 145.00 = 0")
	assert.Equal(t, reply.Animation(notify.SadAnimationURL), out[4])

	out = f.press(alice.ChatID, callback.HistoryGroup, trip.ID)
	assert.Equal(t, reply.Animation(notify.RichAnimationURL), out[len(out)-1])
}

func TestHistoryRequiresMembership(t *testing.T) {
	f := newFixture(t)
	_, _, _, trip := seedTrip(t, f)
	f.user("mallory", 9, domain.RoleMember)

	assert.Equal(t, []string{msgForbidden}, texts(f.press(9, callback.HistoryGroup, trip.ID)))
}

func TestHistoryEmptyGroup(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice", 1, domain.RoleMember)
	trip := f.group("Trip", alice)

	assert.Equal(t, []string{msgNoExpenses}, texts(f.press(1, callback.HistoryGroup, trip.ID)))
}

func TestNotify(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol, trip := seedTrip(t, f)

	assert.Equal(t, []string{msgForbidden}, texts(f.press(bob.ChatID, callback.NotifyGroup, trip.ID)))
	assert.Empty(t, f.out.to(bob.ChatID))

	assert.Equal(t, []string{msgNotified}, texts(f.press(alice.ChatID, callback.NotifyGroup, trip.ID)))

	got := f.out.to(carol.ChatID)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "You owe: 145.00")
	assert.Equal(t, notify.SadAnimationURL, got[0].AnimationURL)

	got = f.out.to(alice.ChatID)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Text, "You should receive: 200.00")
	assert.Equal(t, notify.RichAnimationURL, got[0].AnimationURL)
}

func TestNotifyPartialFailure(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol, trip := seedTrip(t, f)
	f.out.fail[bob.ChatID] = true

	out := f.press(alice.ChatID, callback.NotifyGroup, trip.ID)
	assert.Equal(t, []string{fmt.Sprintf(msgNotifiedPartial, 1)}, texts(out))
	assert.Len(t, f.out.to(carol.ChatID), 1)
	assert.Len(t, f.out.to(alice.ChatID), 1)
}

func TestCloseExpenses(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol, trip := seedTrip(t, f)

	out := f.text(alice.ChatID, LabelCloseExpenses)
	assert.Equal(t, fmt.Sprintf(msgPickGroupFor, "close"), out[0].Text)

	assert.Equal(t, []string{msgForbidden}, texts(f.press(bob.ChatID, callback.CloseGroup, trip.ID)))
	assert.Equal(t, []string{msgClosed}, texts(f.press(alice.ChatID, callback.CloseGroup, trip.ID)))

	expenses, err := f.store.ListUnsettledExpensesForGroup(f.ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, expenses)

	for _, u := range []domain.User{alice, bob, carol} {
		got := f.out.to(u.ChatID)
		require.Len(t, got, 1, u.Username)
		assert.Equal(t, "alice closed expenses", got[0].Text)
	}
	assert.Equal(t, []string{msgNoExpenses}, texts(f.press(alice.ChatID, callback.HistoryGroup, trip.ID)))
}
