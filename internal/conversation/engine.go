// Package conversation runs the per-chat dialog state machines: auth,
// expense entry with group management, and the root admin menu. Each
// exported handler interprets one inbound event and returns the replies
// the transport should deliver.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/state"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/credential"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/notify"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store"
)

const (
	compAuth       = "service.auth"
	compExpenses   = "service.expenses"
	compGroups     = "service.groups"
	compSettlement = "service.settlement"
)

// Chat identifies the conversation an event arrived on.
type Chat struct {
	ID int64
	// Handle is the sender's Telegram @username, recorded on registration.
	Handle string
}

// Options wires an Engine.
type Options struct {
	Store    store.Store
	Verifier credential.Verifier
	Notifier *notify.Dispatcher
	// SupportContact is shown to users waiting for approval.
	SupportContact string
}

// roleFlow is the menu and free-text behaviour for one role.
type roleFlow struct {
	menu func(ctx context.Context, u *domain.User) ([]reply.Message, error)
	text func(ctx context.Context, chat Chat, u *domain.User, text string) ([]reply.Message, error)
}

// Engine owns the session stores and serializes events per chat.
type Engine struct {
	store          store.Store
	verifier       credential.Verifier
	notifier       *notify.Dispatcher
	supportContact string

	auth  *state.Store[AuthSession]
	main  *state.Store[MainSession]
	root  *state.Store[RootSession]
	locks *state.Locker

	flows map[domain.Role]roleFlow
}

func New(opts Options) *Engine {
	e := &Engine{
		store:          opts.Store,
		verifier:       opts.Verifier,
		notifier:       opts.Notifier,
		supportContact: opts.SupportContact,
		auth:           state.NewStore[AuthSession](),
		main:           state.NewStore[MainSession](),
		root:           state.NewStore[RootSession](),
		locks:          state.NewLocker(),
	}
	if e.verifier == nil {
		e.verifier = credential.Plain{}
	}
	if e.notifier == nil {
		e.notifier = notify.NewDispatcher(nil)
	}
	e.flows = map[domain.Role]roleFlow{
		domain.RoleRoot:   {menu: e.rootMenu, text: e.rootText},
		domain.RoleAdmin:  {menu: e.mainMenu, text: e.mainText},
		domain.RoleMember: {menu: e.mainMenu, text: e.mainText},
	}
	return e
}

func (e *Engine) flowFor(r domain.Role) roleFlow {
	if f, ok := e.flows[r]; ok {
		return f
	}
	return e.flows[domain.RoleMember]
}

// Pending reports whether the chat is in the middle of any flow.
func (e *Engine) Pending(chatID int64) bool {
	if _, ok := e.auth.Get(chatID); ok {
		return true
	}
	if _, ok := e.root.Get(chatID); ok {
		return true
	}
	s, ok := e.main.Get(chatID)
	return ok && s.Step != StepIdle
}

// Start answers /start: the register/login choice for unknown chats, the
// role menu for accepted users, and a pending notice otherwise.
func (e *Engine) Start(ctx context.Context, chat Chat) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	u, err := e.userForChat(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		e.auth.Delete(chat.ID)
		return []reply.Message{reply.Choices(msgWelcome,
			reply.Button{Label: msgRegisterButton, Data: callback.New(callback.Register, "")},
			reply.Button{Label: msgLoginButton, Data: callback.New(callback.Login, "")},
		)}, nil
	}
	if !u.IsAccepted {
		return say(e.pendingApproval()), nil
	}
	return e.flowFor(u.Role).menu(ctx, u)
}

// Help lists the commands.
func (e *Engine) Help() []reply.Message {
	return say(msgHelp)
}

// Cancel drops every pending flow for the chat.
func (e *Engine) Cancel(ctx context.Context, chat Chat) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	_, hadAuth := e.auth.Get(chat.ID)
	_, hadRoot := e.root.Get(chat.ID)
	e.auth.Delete(chat.ID)
	e.root.Delete(chat.ID)

	if s, ok := e.main.Get(chat.ID); ok && s.Step != StepIdle {
		e.main.Set(chat.ID, MainSession{})
		logger.Debug(ctx, compExpenses, "expense.cancel", slog.Int("step", int(s.Step)))
		return say(msgExpenseCanceled), nil
	}
	if hadAuth || hadRoot {
		return say(msgActionCanceled), nil
	}
	return say(msgNothingToCancel), nil
}

// HandleText routes free text: a pending auth flow first, then the sender's
// role flow.
func (e *Engine) HandleText(ctx context.Context, chat Chat, text string) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	if _, ok := e.auth.Get(chat.ID); ok {
		return e.authText(ctx, chat, text)
	}
	u, err := e.userForChat(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return say(msgStartFirst), nil
	}
	if !u.IsAccepted {
		return say(e.pendingApproval()), nil
	}
	return e.flowFor(u.Role).text(ctx, chat, u, text)
}

// HandleCallback routes a decoded button press.
func (e *Engine) HandleCallback(ctx context.Context, chat Chat, data callback.Data) ([]reply.Message, error) {
	switch data.Action {
	case callback.Register:
		return e.HandleAuthSelection(ctx, chat, AuthRegister)
	case callback.Login:
		return e.HandleAuthSelection(ctx, chat, AuthLogin)
	case callback.ApproveUser:
		return e.HandleRootApproval(ctx, chat, data.ID)
	default:
		return e.HandleMainCallback(ctx, chat, data)
	}
}

// userForChat returns nil without error when no user is bound to chatID.
func (e *Engine) userForChat(ctx context.Context, chatID int64) (*domain.User, error) {
	u, err := e.store.FindUserByChatID(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by chat: %w", err)
	}
	return u, nil
}

// actingUser loads the accepted user behind chatID. A nil user comes with
// the reply to send instead.
func (e *Engine) actingUser(ctx context.Context, chatID int64) (*domain.User, []reply.Message, error) {
	u, err := e.userForChat(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, say(msgUserNotFound), nil
	}
	if !u.IsAccepted {
		return nil, say(e.pendingApproval()), nil
	}
	return u, nil, nil
}

func say(texts ...string) []reply.Message {
	out := make([]reply.Message, 0, len(texts))
	for _, t := range texts {
		out = append(out, reply.Text(t))
	}
	return out
}

func sayf(format string, args ...any) []reply.Message {
	return say(fmt.Sprintf(format, args...))
}
