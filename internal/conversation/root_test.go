package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

func TestRootCreateGroup(t *testing.T) {
	f := newFixture(t)
	f.user("root", 1, domain.RoleRoot)
	f.group("Trip")

	assert.Equal(t, []string{msgUseMenu}, texts(f.text(1, "Home")))

	assert.Equal(t, []string{msgAskGroupName}, texts(f.text(1, LabelCreateGroup)))
	assert.True(t, f.eng.Pending(1))
	assert.Equal(t, []string{msgEmptyGroupName}, texts(f.text(1, "  ")))
	assert.Equal(t, []string{msgGroupNameTaken}, texts(f.text(1, "Trip")))
	assert.True(t, f.eng.Pending(1))

	assert.Equal(t, []string{msgGroupCreated}, texts(f.text(1, "Home")))
	assert.False(t, f.eng.Pending(1))
	_, err := f.store.FindGroupByName(f.ctx, "Home")
	require.NoError(t, err)
}

func TestRootLabelDuringGroupCreation(t *testing.T) {
	f := newFixture(t)
	f.user("root", 1, domain.RoleRoot)

	f.text(1, LabelCreateGroup)
	out := f.text(1, LabelSeeGroups)
	assert.Equal(t, []string{msgNoGroups}, texts(out))
	assert.False(t, f.eng.Pending(1))

	_, err := f.store.FindGroupByName(f.ctx, LabelSeeGroups)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRootSeeGroups(t *testing.T) {
	f := newFixture(t)
	f.user("root", 1, domain.RoleRoot)
	alice := f.user("alice", 2, domain.RoleMember)
	bob := f.user("bob", 3, domain.RoleMember)
	f.group("Trip", alice, bob)
	f.group("Home", alice)

	out := f.text(1, LabelSeeGroups)
	assert.Equal(t, []string{
		msgFetchingGroups,
		fmt.Sprintf(msgGroupItem, 1, "Home", 1),
		fmt.Sprintf(msgGroupItem, 2, "Trip", 2),
	}, texts(out))
}

func TestRootApproveUser(t *testing.T) {
	f := newFixture(t)
	f.user("root", 1, domain.RoleRoot)
	carol := f.store.SeedUser(domain.User{Username: "carol", ChatID: 5})

	out := f.text(1, LabelSeeUserRequests)
	require.Len(t, out, 1)
	assert.Equal(t, reply.KindChoices, out[0].Kind)
	assert.Equal(t, []string{"carol"}, labels(out[0]))
	assert.Equal(t, callback.New(callback.ApproveUser, carol.ID), out[0].Buttons[0][0].Data)

	out = f.press(1, callback.ApproveUser, carol.ID)
	assert.Equal(t, []string{"User carol has been approved successfully! ✅"}, texts(out))
	u, err := f.store.FindUserByID(f.ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, u.IsAccepted)
	require.Len(t, f.out.to(5), 1)
	assert.Equal(t, msgUserApprovedDM, f.out.to(5)[0].Text)

	out = f.press(1, callback.ApproveUser, carol.ID)
	assert.Equal(t, []string{"User carol is already approved. ✅"}, texts(out))
	assert.Len(t, f.out.to(5), 1)

	assert.Equal(t, []string{msgUserNotFound}, texts(f.press(1, callback.ApproveUser, "missing")))
	assert.Equal(t, []string{msgNoPendingUsers}, texts(f.text(1, LabelSeeUserRequests)))
}

func TestOnlyRootApprovesUsers(t *testing.T) {
	f := newFixture(t)
	f.user("alice", 1, domain.RoleAdmin)
	carol := f.store.SeedUser(domain.User{Username: "carol", ChatID: 5})

	assert.Equal(t, []string{msgForbidden}, texts(f.press(1, callback.ApproveUser, carol.ID)))
	out, err := f.eng.HandleRootText(f.ctx, Chat{ID: 1}, LabelSeeUserRequests)
	require.NoError(t, err)
	assert.Equal(t, []string{msgForbidden}, texts(out))
}
