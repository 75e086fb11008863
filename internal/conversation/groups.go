package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/notify"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/settlement"
)

func (e *Engine) listJoinableGroups(ctx context.Context, _ Chat, u *domain.User) ([]reply.Message, error) {
	groups, err := e.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	memberships, err := e.store.ListMembershipsForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	joined := make(map[string]bool, len(memberships))
	for _, m := range memberships {
		joined[m.GroupID] = true
	}

	var buttons []reply.Button
	for _, g := range groups {
		if joined[g.ID] {
			continue
		}
		buttons = append(buttons, reply.Button{Label: g.Name, Data: callback.New(callback.JoinGroup, g.ID)})
	}
	if len(buttons) == 0 {
		return say(msgNoGroupsToJoin), nil
	}
	return []reply.Message{reply.Choices(msgPickGroupToJoin, buttons...)}, nil
}

func (e *Engine) joinGroup(ctx context.Context, u *domain.User, groupID string) ([]reply.Message, error) {
	g, err := e.store.FindGroupByID(ctx, groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return say(msgNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find group: %w", err)
	}
	m, err := e.store.CreateMembership(ctx, u.ID, g.ID)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return say(msgAlreadyRequested), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}
	logger.Info(ctx, compGroups, "membership.request",
		slog.String("membership_id", m.ID),
		slog.String("group_id", g.ID),
	)
	return sayf(msgJoinRequested, g.Name), nil
}

// listJoinRequests shows pending memberships of the admin's groups, minus
// the admin's own.
func (e *Engine) listJoinRequests(ctx context.Context, _ Chat, u *domain.User) ([]reply.Message, error) {
	groupIDs, err := e.acceptedGroupIDs(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	pending, err := e.store.ListPendingMemberships(ctx, groupIDs, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list pending memberships: %w", err)
	}
	if len(pending) == 0 {
		return say(msgNoPendingJoins), nil
	}
	buttons := make([]reply.Button, 0, len(pending))
	for _, m := range pending {
		buttons = append(buttons, reply.Button{
			Label: fmt.Sprintf(msgPendingJoinItem, m.Username, m.GroupName),
			Data:  callback.New(callback.ApproveMember, m.ID),
		})
	}
	return []reply.Message{reply.Choices(msgPendingJoins, buttons...)}, nil
}

func (e *Engine) approveMember(ctx context.Context, u *domain.User, membershipID string) ([]reply.Message, error) {
	m, err := e.store.FindMembershipByID(ctx, membershipID)
	if errors.Is(err, domain.ErrNotFound) {
		return say(msgNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if m.UserID == u.ID {
		return say(msgForbidden), nil
	}
	ok, err := e.isGroupAdmin(ctx, u, m.GroupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return say(msgForbidden), nil
	}
	if m.IsAccepted {
		return sayf(msgAlreadyMember, m.Username, m.GroupName), nil
	}
	if err := e.store.ApproveMembership(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("approve membership: %w", err)
	}
	logger.Info(ctx, compGroups, "membership.approve",
		slog.String("membership_id", m.ID),
		slog.String("group_id", m.GroupID),
	)

	target, err := e.store.FindUserByID(ctx, m.UserID)
	if err != nil {
		logger.Warn(ctx, compGroups, "membership.approve.notify_skip",
			slog.String("membership_id", m.ID),
			slog.String("err", err.Error()),
		)
		return say(msgJoinApproved), nil
	}
	e.notifier.Direct(ctx, target.ChatID, msgJoinApprovedDM)
	return say(msgJoinApproved), nil
}

// isGroupAdmin reports whether u is an ADMIN with an accepted membership in groupID.
func (e *Engine) isGroupAdmin(ctx context.Context, u *domain.User, groupID string) (bool, error) {
	if u.Role != domain.RoleAdmin {
		return false, nil
	}
	return e.isAcceptedIn(ctx, u, groupID)
}

func (e *Engine) isAcceptedIn(ctx context.Context, u *domain.User, groupID string) (bool, error) {
	m, err := e.store.FindMembership(ctx, u.ID, groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find membership: %w", err)
	}
	return m.IsAccepted, nil
}

// pickGroup lists the user's accepted groups as buttons carrying action.
func (e *Engine) pickGroup(action callback.Action, verb string) func(context.Context, Chat, *domain.User) ([]reply.Message, error) {
	return func(ctx context.Context, _ Chat, u *domain.User) ([]reply.Message, error) {
		memberships, err := e.store.ListMembershipsForUser(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		var buttons []reply.Button
		for _, m := range memberships {
			if m.IsAccepted {
				buttons = append(buttons, reply.Button{Label: m.GroupName, Data: callback.New(action, m.GroupID)})
			}
		}
		if len(buttons) == 0 {
			return say(msgNoMemberships), nil
		}
		return []reply.Message{reply.Choices(fmt.Sprintf(msgPickGroupFor, verb), buttons...)}, nil
	}
}

func (e *Engine) settle(ctx context.Context, groupID string) ([]domain.Expense, settlement.Result, error) {
	expenses, err := e.store.ListUnsettledExpensesForGroup(ctx, groupID)
	if err != nil {
		return nil, settlement.Result{}, fmt.Errorf("list unsettled expenses: %w", err)
	}
	return expenses, settlement.Compute(expenses), nil
}

func (e *Engine) history(ctx context.Context, u *domain.User, groupID string) ([]reply.Message, error) {
	ok, err := e.isAcceptedIn(ctx, u, groupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return say(msgForbidden), nil
	}
	expenses, result, err := e.settle(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return say(msgNoExpenses), nil
	}

	out := make([]reply.Message, 0, len(expenses)+3)
	out = append(out, reply.Text(msgExpensesHeader))
	for _, exp := range expenses {
		out = append(out, reply.Text(settlement.FormatExpense(exp)))
	}
	out = append(out, reply.Text(result.Summary()))
	if _, ok := result.Credits[u.ID]; ok {
		out = append(out, reply.Animation(notify.RichAnimationURL))
	} else if _, ok := result.Debts[u.ID]; ok {
		out = append(out, reply.Animation(notify.SadAnimationURL))
	}

	logger.Debug(ctx, compSettlement, "settlement.history",
		slog.String("group_id", groupID),
		slog.Int("expenses_shown", len(expenses)),
	)
	return out, nil
}

func (e *Engine) notifyGroup(ctx context.Context, u *domain.User, groupID string) ([]reply.Message, error) {
	ok, err := e.isGroupAdmin(ctx, u, groupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return say(msgForbidden), nil
	}
	expenses, result, err := e.settle(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return say(msgNoExpenses), nil
	}
	rep := e.notifier.Settlement(ctx, result)
	if rep.Failed > 0 {
		return sayf(msgNotifiedPartial, rep.Failed), nil
	}
	return say(msgNotified), nil
}

func (e *Engine) closeGroup(ctx context.Context, u *domain.User, groupID string) ([]reply.Message, error) {
	ok, err := e.isGroupAdmin(ctx, u, groupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return say(msgForbidden), nil
	}
	n, err := e.store.MarkGroupExpensesSettled(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("settle group: %w", err)
	}
	logger.Info(ctx, compSettlement, "settlement.close",
		slog.String("group_id", groupID),
		slog.Int64("expenses_total", n),
	)

	members, err := e.store.ListUsersInGroup(ctx, groupID)
	if err != nil {
		logger.Warn(ctx, compSettlement, "settlement.close.notify_skip",
			slog.String("group_id", groupID),
			slog.String("err", err.Error()),
		)
		return say(msgClosed), nil
	}
	e.notifier.Broadcast(ctx, members, fmt.Sprintf(msgClosedDM, u.Username))
	return say(msgClosed), nil
}
