package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

// HandleAuthSelection starts a register or login flow for a chat that has
// no user yet. A previous auth session is overwritten.
func (e *Engine) HandleAuthSelection(ctx context.Context, chat Chat, kind AuthKind) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	u, err := e.userForChat(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return say(e.alreadyHaveAccount()), nil
	}
	e.auth.Set(chat.ID, AuthSession{Step: AwaitingUsername, Kind: kind})
	logger.Debug(ctx, compAuth, "auth.start", slog.String("mode", string(kind)))
	return say(msgAskUsername), nil
}

// HandleAuthText feeds one text message into the chat's auth flow.
func (e *Engine) HandleAuthText(ctx context.Context, chat Chat, text string) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()
	return e.authText(ctx, chat, text)
}

func (e *Engine) authText(ctx context.Context, chat Chat, text string) ([]reply.Message, error) {
	s, ok := e.auth.Get(chat.ID)
	if !ok {
		return say(msgStartFirst), nil
	}
	text = strings.TrimSpace(text)

	switch s.Step {
	case AwaitingUsername:
		return e.authUsername(ctx, chat, s, text)
	case AwaitingPassword:
		if s.Kind == AuthRegister {
			return e.authRegister(ctx, chat, s, text)
		}
		return e.authLogin(ctx, chat, s, text)
	}
	e.auth.Delete(chat.ID)
	return say(msgStartFirst), nil
}

func (e *Engine) authUsername(ctx context.Context, chat Chat, s AuthSession, username string) ([]reply.Message, error) {
	if username == "" {
		return say(msgAskUsername), nil
	}
	if s.Kind == AuthRegister {
		_, err := e.store.FindUserByUsername(ctx, username)
		switch {
		case err == nil:
			e.auth.Set(chat.ID, AuthSession{Step: AwaitingUsername, Kind: AuthRegister})
			return say(msgUsernameTaken), nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("check username: %w", err)
		}
	}
	e.auth.Set(chat.ID, AuthSession{Step: AwaitingPassword, Kind: s.Kind, Username: username})
	return say(msgAskPassword), nil
}

func (e *Engine) authRegister(ctx context.Context, chat Chat, s AuthSession, password string) ([]reply.Message, error) {
	if password == "" {
		return say(msgAskPassword), nil
	}
	stored, err := e.verifier.Hash(password)
	if err != nil {
		return nil, err
	}
	u, err := e.store.CreateUser(ctx, domain.NewUser{
		Username:         s.Username,
		Password:         stored,
		ChatID:           chat.ID,
		TelegramUsername: chat.Handle,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		e.auth.Set(chat.ID, AuthSession{Step: AwaitingUsername, Kind: AuthRegister})
		return say(msgUsernameTaken), nil
	}
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	e.auth.Delete(chat.ID)
	logger.Info(ctx, compAuth, "auth.register",
		slog.String("username", u.Username),
		slog.String("status", "pending"),
	)
	return say(e.registeredPending()), nil
}

func (e *Engine) authLogin(ctx context.Context, chat Chat, s AuthSession, password string) ([]reply.Message, error) {
	u, err := e.store.FindUserByUsername(ctx, s.Username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find user for login: %w", err)
	}
	if u == nil || !e.verifier.Match(u.Password, password) {
		e.auth.Set(chat.ID, AuthSession{Step: AwaitingUsername, Kind: AuthLogin})
		logger.Info(ctx, compAuth, "auth.login", slog.String("outcome", "fail"))
		return say(msgInvalidLogin, msgAskUsername), nil
	}

	if u.ChatID != chat.ID {
		if err := e.store.BindUserChat(ctx, u.ID, chat.ID, chat.Handle); err != nil {
			return nil, fmt.Errorf("bind chat on login: %w", err)
		}
		u.ChatID = chat.ID
	}
	e.auth.Delete(chat.ID)
	logger.Info(ctx, compAuth, "auth.login",
		slog.String("username", u.Username),
		slog.String("outcome", "ok"),
	)

	out := say(fmt.Sprintf(msgLoggedIn, u.Role))
	if !u.IsAccepted {
		return append(out, reply.Text(e.pendingApproval())), nil
	}
	menu, err := e.flowFor(u.Role).menu(ctx, u)
	if err != nil {
		return nil, err
	}
	return append(out, menu...), nil
}
