package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

// HandleRootText feeds text from a ROOT chat into the root flow.
func (e *Engine) HandleRootText(ctx context.Context, chat Chat, text string) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	u, out, err := e.actingUser(ctx, chat.ID)
	if u == nil {
		return out, err
	}
	if u.Role != domain.RoleRoot {
		return say(msgForbidden), nil
	}
	return e.rootText(ctx, chat, u, text)
}

// HandleRootApproval accepts a pending registration on behalf of a ROOT user.
func (e *Engine) HandleRootApproval(ctx context.Context, chat Chat, targetUserID string) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	u, out, err := e.actingUser(ctx, chat.ID)
	if u == nil {
		return out, err
	}
	if u.Role != domain.RoleRoot {
		return say(msgForbidden), nil
	}

	target, err := e.store.FindUserByID(ctx, targetUserID)
	if errors.Is(err, domain.ErrNotFound) {
		return say(msgUserNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if target.IsAccepted {
		return sayf(msgUserAlreadyOK, target.Username), nil
	}
	if err := e.store.ApproveUser(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("approve user: %w", err)
	}
	logger.Info(ctx, compAuth, "user.approve", slog.String("user_id", target.ID))

	e.notifier.Direct(ctx, target.ChatID, msgUserApprovedDM)
	return sayf(msgUserApproved, target.Username), nil
}

func (e *Engine) rootMenu(context.Context, *domain.User) ([]reply.Message, error) {
	return []reply.Message{reply.Menu(msgRootMenu, 2, rootLabels...)}, nil
}

func (e *Engine) rootText(ctx context.Context, chat Chat, _ *domain.User, text string) ([]reply.Message, error) {
	// Menu labels win over a pending group name.
	switch strings.TrimSpace(text) {
	case LabelCreateGroup:
		e.root.Set(chat.ID, RootSession{Step: RootGroupCreation})
		return say(msgAskGroupName), nil
	case LabelSeeGroups:
		e.root.Delete(chat.ID)
		return e.listGroups(ctx)
	case LabelSeeUserRequests:
		e.root.Delete(chat.ID)
		return e.listPendingUsers(ctx)
	}

	if s, ok := e.root.Get(chat.ID); ok && s.Step == RootGroupCreation {
		return e.createGroup(ctx, chat, text)
	}
	return say(msgUseMenu), nil
}

func (e *Engine) createGroup(ctx context.Context, chat Chat, text string) ([]reply.Message, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return say(msgEmptyGroupName), nil
	}
	_, err := e.store.FindGroupByName(ctx, name)
	switch {
	case err == nil:
		return say(msgGroupNameTaken), nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("find group by name: %w", err)
	}

	g, err := e.store.CreateGroup(ctx, name)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return say(msgGroupNameTaken), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	e.root.Delete(chat.ID)
	logger.Info(ctx, compGroups, "group.create", slog.String("group_id", g.ID))
	return say(msgGroupCreated), nil
}

func (e *Engine) listGroups(ctx context.Context) ([]reply.Message, error) {
	groups, err := e.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if len(groups) == 0 {
		return say(msgNoGroups), nil
	}
	out := make([]reply.Message, 0, len(groups)+1)
	out = append(out, reply.Text(msgFetchingGroups))
	for i, g := range groups {
		out = append(out, reply.Text(fmt.Sprintf(msgGroupItem, i+1, g.Name, g.MemberCount)))
	}
	return out, nil
}

func (e *Engine) listPendingUsers(ctx context.Context) ([]reply.Message, error) {
	users, err := e.store.FindPendingUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("find pending users: %w", err)
	}
	if len(users) == 0 {
		return say(msgNoPendingUsers), nil
	}
	buttons := make([]reply.Button, 0, len(users))
	for _, u := range users {
		buttons = append(buttons, reply.Button{Label: u.Username, Data: callback.New(callback.ApproveUser, u.ID)})
	}
	return []reply.Message{reply.Choices(msgPickUsers, buttons...)}, nil
}
