// Package callback describes inline-button actions as a typed value that is
// decoded once at the transport boundary.
package callback

import (
	"errors"
	"fmt"
	"strings"
)

// Action names what an inline button does.
type Action string

const (
	Register       Action = "register"
	Login          Action = "login"
	JoinGroup      Action = "join_group"
	ApproveMember  Action = "approve_member"
	ApproveUser    Action = "approve_user"
	SelectGroup    Action = "select_group"
	SelectUser     Action = "select_user"
	ConfirmExpense Action = "confirm_expense"
	CancelExpense  Action = "cancel_expense"
	HistoryGroup   Action = "history_group"
	NotifyGroup    Action = "notify_group"
	CloseGroup     Action = "close_group"
)

// Actions lists every known action in registration order.
var Actions = []Action{
	Register, Login,
	JoinGroup, ApproveMember, ApproveUser,
	SelectGroup, SelectUser, ConfirmExpense, CancelExpense,
	HistoryGroup, NotifyGroup, CloseGroup,
}

// needsID reports whether the action targets a specific entity.
func (a Action) needsID() bool {
	switch a {
	case Register, Login, ConfirmExpense, CancelExpense:
		return false
	}
	return true
}

func (a Action) known() bool {
	for _, k := range Actions {
		if k == a {
			return true
		}
	}
	return false
}

// MaxDataLen is Telegram's limit on callback_data bytes.
const MaxDataLen = 64

var (
	ErrUnknownAction = errors.New("unknown callback action")
	ErrMissingID     = errors.New("callback id required")
	ErrTooLong       = errors.New("callback data too long")
)

// Data is a decoded button press: the action and the id of its target
// (group, user or membership), empty for actions without a target.
type Data struct {
	Action Action
	ID     string
}

// New builds Data for a with an optional target id.
func New(a Action, id string) Data {
	return Data{Action: a, ID: id}
}

// Validate checks that the action is known and its id presence matches.
func (d Data) Validate() error {
	if !d.Action.known() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, d.Action)
	}
	if d.Action.needsID() && d.ID == "" {
		return fmt.Errorf("%w: %s", ErrMissingID, d.Action)
	}
	if len(d.Encode())+1 > MaxDataLen {
		return fmt.Errorf("%w: %s", ErrTooLong, d.Action)
	}
	return nil
}

// Encode renders Data the way telebot packs inline buttons: unique|payload.
func (d Data) Encode() string {
	if d.ID == "" {
		return string(d.Action)
	}
	return string(d.Action) + "|" + d.ID
}

// Decode parses a unique key and payload pair into validated Data.
func Decode(unique, payload string) (Data, error) {
	d := Data{
		Action: Action(strings.TrimSpace(unique)),
		ID:     strings.TrimSpace(payload),
	}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Parse splits an encoded string produced by Encode. A leading form feed,
// as telebot prefixes it, is ignored.
func Parse(raw string) (Data, error) {
	raw = strings.TrimPrefix(raw, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return Decode(unique, payload)
}
