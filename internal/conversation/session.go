package conversation

import (
	"slices"

	"github.com/shopspring/decimal"
)

// AuthKind says whether an auth flow registers a new account or logs in.
type AuthKind string

const (
	AuthRegister AuthKind = "register"
	AuthLogin    AuthKind = "login"
)

// AuthStep is the position inside the auth flow.
type AuthStep int

const (
	AwaitingUsername AuthStep = iota + 1
	AwaitingPassword
)

// AuthSession exists only while a chat has no user record.
type AuthSession struct {
	Step     AuthStep
	Kind     AuthKind
	Username string
}

// MainStep is the position inside the expense entry flow; zero is idle.
type MainStep int

const (
	StepIdle MainStep = iota
	StepAmount
	StepDescription
	StepGroup
	StepVictims
)

// MainSession carries a partially entered expense.
type MainSession struct {
	Step        MainStep
	Amount      decimal.Decimal
	Description string
	GroupID     string
	// GroupChoices are the group ids offered at StepGroup.
	GroupChoices []string
	// Selected keeps victim ids in the order they were first picked.
	Selected []string
}

func (s MainSession) isSelected(userID string) bool {
	return slices.Contains(s.Selected, userID)
}

// toggle returns a copy with userID added or removed.
func (s MainSession) toggle(userID string) MainSession {
	if i := slices.Index(s.Selected, userID); i >= 0 {
		s.Selected = slices.Delete(slices.Clone(s.Selected), i, i+1)
		return s
	}
	s.Selected = append(slices.Clone(s.Selected), userID)
	return s
}

// RootStep is the position inside the root admin flow.
type RootStep int

const (
	RootGroupCreation RootStep = iota + 1
)

// RootSession tracks a pending group creation.
type RootSession struct {
	Step RootStep
}
