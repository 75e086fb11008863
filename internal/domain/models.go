// Package domain defines the entities shared by the bot, the conversation
// state machines and the entity store.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the capability level of a registered user.
type Role string

const (
	RoleRoot   Role = "ROOT"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// ParseRole maps a stored role name to a Role, defaulting to RoleMember.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleRoot:
		return RoleRoot
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// User is a registered bot account bound to a single chat.
type User struct {
	ID               string    `db:"id"`
	Username         string    `db:"username"`
	Password         string    `db:"password"`
	ChatID           int64     `db:"chat_id"`
	TelegramUsername string    `db:"telegram_username"`
	Role             Role      `db:"role"`
	IsAccepted       bool      `db:"is_accepted"`
	CreatedAt        time.Time `db:"created_at"`
}

// Group is a named set of users sharing expenses.
type Group struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	MemberCount int       `db:"member_count"`
	CreatedAt   time.Time `db:"created_at"`
}

// Membership links a user to a group. ID is a surrogate key; the
// (UserID, GroupID) pair is unique.
type Membership struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	GroupID    string `db:"group_id"`
	IsAccepted bool   `db:"is_accepted"`

	// Populated by listing queries.
	Username  string `db:"username"`
	GroupName string `db:"group_name"`
}

// Expense is a payment made by Owner and shared by Victims.
type Expense struct {
	ID          string
	Amount      decimal.Decimal
	Description string
	OwnerID     string
	GroupID     string
	VictimIDs   []string
	IsSettled   bool
	CreatedAt   time.Time

	// Populated when loading unsettled expenses for settlement.
	Owner   User
	Victims []User
}

// NewExpense is the input for creating an expense.
type NewExpense struct {
	Amount      decimal.Decimal
	Description string
	OwnerID     string
	GroupID     string
	VictimIDs   []string
}

// NewUser is the input for registering a user.
type NewUser struct {
	Username         string
	Password         string
	ChatID           int64
	TelegramUsername string
}
