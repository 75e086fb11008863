// Package store declares the entity store consumed by the conversation core.
package store

import (
	"context"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
)

// Users covers user lookup and registration. Lookups return an error
// wrapping domain.ErrNotFound when no row matches.
type Users interface {
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByChatID(ctx context.Context, chatID int64) (*domain.User, error)
	CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error)
	// BindUserChat moves a user to chatID after a login from another chat.
	BindUserChat(ctx context.Context, id string, chatID int64, telegramUsername string) error
	ApproveUser(ctx context.Context, id string) error
	SetUserRole(ctx context.Context, id string, role domain.Role) error
	FindPendingUsers(ctx context.Context) ([]domain.User, error)
}

// Groups covers groups and memberships.
type Groups interface {
	FindGroupByName(ctx context.Context, name string) (*domain.Group, error)
	FindGroupByID(ctx context.Context, id string) (*domain.Group, error)
	CreateGroup(ctx context.Context, name string) (*domain.Group, error)
	// ListGroups returns all groups with MemberCount populated.
	ListGroups(ctx context.Context) ([]domain.Group, error)

	CreateMembership(ctx context.Context, userID, groupID string) (*domain.Membership, error)
	FindMembership(ctx context.Context, userID, groupID string) (*domain.Membership, error)
	FindMembershipByID(ctx context.Context, id string) (*domain.Membership, error)
	ApproveMembership(ctx context.Context, id string) error
	// ListMembershipsForUser returns the user's memberships with GroupName populated.
	ListMembershipsForUser(ctx context.Context, userID string) ([]domain.Membership, error)
	// ListPendingMemberships returns unaccepted memberships of the given
	// groups, skipping excludingUserID, with Username and GroupName populated.
	ListPendingMemberships(ctx context.Context, groupIDs []string, excludingUserID string) ([]domain.Membership, error)
	ListUsersInGroup(ctx context.Context, groupID string) ([]domain.User, error)
}

// Expenses covers expense creation and settlement.
type Expenses interface {
	CreateExpense(ctx context.Context, in domain.NewExpense) (*domain.Expense, error)
	// ListUnsettledExpensesForGroup returns expenses in creation order with
	// Owner and Victims populated; Victims keep their entry order.
	ListUnsettledExpensesForGroup(ctx context.Context, groupID string) ([]domain.Expense, error)
	MarkGroupExpensesSettled(ctx context.Context, groupID string) (int64, error)
}

// Store is the full entity store.
type Store interface {
	Users
	Groups
	Expenses
	Close() error
}
