package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

// HandleMainText feeds text from an ADMIN or MEMBER chat into the main flow.
func (e *Engine) HandleMainText(ctx context.Context, chat Chat, text string) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	u, out, err := e.actingUser(ctx, chat.ID)
	if u == nil {
		return out, err
	}
	if u.Role == domain.RoleRoot {
		return say(msgForbidden), nil
	}
	return e.mainText(ctx, chat, u, text)
}

// HandleMainCallback applies a main-flow button press.
func (e *Engine) HandleMainCallback(ctx context.Context, chat Chat, data callback.Data) ([]reply.Message, error) {
	defer e.locks.Lock(chat.ID)()

	if err := data.Validate(); err != nil {
		return say(msgSelectionStale), nil
	}
	u, out, err := e.actingUser(ctx, chat.ID)
	if u == nil {
		return out, err
	}

	switch data.Action {
	case callback.SelectGroup:
		return e.selectGroup(ctx, chat, data.ID)
	case callback.SelectUser:
		return e.toggleVictim(ctx, chat, data.ID)
	case callback.ConfirmExpense:
		return e.confirmExpense(ctx, chat, u)
	case callback.CancelExpense:
		return e.cancelExpense(ctx, chat)
	case callback.JoinGroup:
		return e.joinGroup(ctx, u, data.ID)
	case callback.ApproveMember:
		return e.approveMember(ctx, u, data.ID)
	case callback.HistoryGroup:
		return e.history(ctx, u, data.ID)
	case callback.NotifyGroup:
		return e.notifyGroup(ctx, u, data.ID)
	case callback.CloseGroup:
		return e.closeGroup(ctx, u, data.ID)
	}
	return say(msgSelectionStale), nil
}

type mainAction struct {
	label     string
	needGroup bool
	adminOnly bool
	run       func(ctx context.Context, chat Chat, u *domain.User) ([]reply.Message, error)
}

// mainActions is ordered as the menu shows it.
func (e *Engine) mainActions() []mainAction {
	return []mainAction{
		{label: LabelAddExpense, needGroup: true, run: e.startExpense},
		{label: LabelHistory, needGroup: true, run: e.pickGroup(callback.HistoryGroup, "view")},
		{label: LabelAcceptRequests, needGroup: true, adminOnly: true, run: e.listJoinRequests},
		{label: LabelNotify, needGroup: true, adminOnly: true, run: e.pickGroup(callback.NotifyGroup, "notify")},
		{label: LabelCloseExpenses, needGroup: true, adminOnly: true, run: e.pickGroup(callback.CloseGroup, "close")},
		{label: LabelJoinGroup, run: e.listJoinableGroups},
	}
}

func (e *Engine) mainMenu(ctx context.Context, u *domain.User) ([]reply.Message, error) {
	accepted, err := e.acceptedGroupIDs(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, a := range e.mainActions() {
		if allowed(a, u, len(accepted) > 0) {
			labels = append(labels, a.label)
		}
	}
	return []reply.Message{reply.Menu(msgMainMenu, 2, labels...)}, nil
}

func allowed(a mainAction, u *domain.User, hasGroup bool) bool {
	if a.needGroup && !hasGroup {
		return false
	}
	return !a.adminOnly || u.Role == domain.RoleAdmin
}

func (e *Engine) mainText(ctx context.Context, chat Chat, u *domain.User, text string) ([]reply.Message, error) {
	label := strings.TrimSpace(text)
	for _, a := range e.mainActions() {
		if a.label != label {
			continue
		}
		if a.adminOnly && u.Role != domain.RoleAdmin {
			return say(msgForbidden), nil
		}
		if a.needGroup {
			accepted, err := e.acceptedGroupIDs(ctx, u.ID)
			if err != nil {
				return nil, err
			}
			if len(accepted) == 0 {
				return say(msgNeedMembership), nil
			}
		}
		return a.run(ctx, chat, u)
	}

	s, _ := e.main.Get(chat.ID)
	switch s.Step {
	case StepAmount:
		return e.enterAmount(chat, s, text), nil
	case StepDescription:
		return e.enterDescription(ctx, chat, u, s, text)
	case StepGroup:
		return e.selectGroup(ctx, chat, strings.TrimSpace(text))
	case StepVictims:
		return say(msgUseButtons), nil
	}
	return say(msgUseMenu), nil
}

func (e *Engine) startExpense(_ context.Context, chat Chat, _ *domain.User) ([]reply.Message, error) {
	e.main.Set(chat.ID, MainSession{Step: StepAmount})
	return say(msgAskAmount), nil
}

var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

const maxAmountScale = 3

// maxAmount bounds expenses well below the width the summaries can render.
var maxAmount = decimal.New(1, 15)

// parseAmount drops every whitespace rune so "12 000" reads as 12000. Only
// plain digits with an optional fraction of up to three places are accepted.
func parseAmount(text string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if !amountPattern.MatchString(cleaned) {
		return decimal.Zero, false
	}
	if _, frac, ok := strings.Cut(cleaned, "."); ok && len(strings.TrimRight(frac, "0")) > maxAmountScale {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() || !d.LessThan(maxAmount) {
		return decimal.Zero, false
	}
	return d, true
}

func (e *Engine) enterAmount(chat Chat, s MainSession, text string) []reply.Message {
	amount, ok := parseAmount(text)
	if !ok {
		return say(msgInvalidAmount)
	}
	s.Amount = amount
	s.Step = StepDescription
	e.main.Set(chat.ID, s)
	return say(msgAskDescription)
}

func (e *Engine) enterDescription(ctx context.Context, chat Chat, u *domain.User, s MainSession, text string) ([]reply.Message, error) {
	if strings.TrimSpace(text) == "" {
		return say(msgEmptyDescription), nil
	}
	memberships, err := e.store.ListMembershipsForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	var (
		buttons []reply.Button
		choices []string
	)
	for _, m := range memberships {
		if !m.IsAccepted {
			continue
		}
		buttons = append(buttons, reply.Button{Label: m.GroupName, Data: callback.New(callback.SelectGroup, m.GroupID)})
		choices = append(choices, m.GroupID)
	}
	if len(choices) == 0 {
		e.main.Set(chat.ID, MainSession{})
		return say(msgNeedMembership), nil
	}

	s.Description = text
	s.Step = StepGroup
	s.GroupChoices = choices
	e.main.Set(chat.ID, s)
	return []reply.Message{reply.Choices(msgAskGroup, buttons...)}, nil
}

func (e *Engine) selectGroup(ctx context.Context, chat Chat, groupID string) ([]reply.Message, error) {
	s, _ := e.main.Get(chat.ID)
	if s.Step != StepGroup {
		return say(msgSelectionStale), nil
	}
	if !slices.Contains(s.GroupChoices, groupID) {
		return say(msgInvalidGroup), nil
	}
	members, err := e.store.ListUsersInGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group users: %w", err)
	}

	s.GroupID = groupID
	s.Step = StepVictims
	s.Selected = nil
	e.main.Set(chat.ID, s)

	return []reply.Message{
		reply.Choices(msgAskVictims, victimButtons(members, s)...),
		reply.ChoiceRows(msgConfirmOrCancel, []reply.Button{
			{Label: msgConfirmButton, Data: callback.New(callback.ConfirmExpense, "")},
			{Label: msgCancelButton, Data: callback.New(callback.CancelExpense, "")},
		}),
	}, nil
}

func victimButtons(members []domain.User, s MainSession) []reply.Button {
	buttons := make([]reply.Button, 0, len(members))
	for _, m := range members {
		label := m.Username
		if s.isSelected(m.ID) {
			label = "✅ " + label
		}
		buttons = append(buttons, reply.Button{Label: label, Data: callback.New(callback.SelectUser, m.ID)})
	}
	return buttons
}

func (e *Engine) toggleVictim(ctx context.Context, chat Chat, userID string) ([]reply.Message, error) {
	s, _ := e.main.Get(chat.ID)
	if s.Step != StepVictims {
		return say(msgSelectionStale), nil
	}
	members, err := e.store.ListUsersInGroup(ctx, s.GroupID)
	if err != nil {
		return nil, fmt.Errorf("list group users: %w", err)
	}
	if !slices.ContainsFunc(members, func(m domain.User) bool { return m.ID == userID }) {
		return say(msgInvalidUser), nil
	}
	s = s.toggle(userID)
	e.main.Set(chat.ID, s)
	return []reply.Message{reply.EditChoices(victimButtons(members, s)...)}, nil
}

func (e *Engine) confirmExpense(ctx context.Context, chat Chat, u *domain.User) ([]reply.Message, error) {
	s, _ := e.main.Get(chat.ID)
	if s.Step != StepVictims {
		return say(msgNothingToConfirm), nil
	}
	if len(s.Selected) == 0 {
		return say(msgNoVictims), nil
	}
	exp, err := e.store.CreateExpense(ctx, domain.NewExpense{
		Amount:      s.Amount,
		Description: s.Description,
		OwnerID:     u.ID,
		GroupID:     s.GroupID,
		VictimIDs:   slices.Clone(s.Selected),
	})
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	e.main.Set(chat.ID, MainSession{})
	logger.Info(ctx, compExpenses, "expense.create",
		slog.String("expense_id", exp.ID),
		slog.String("group_id", exp.GroupID),
		slog.Int("count", len(exp.VictimIDs)),
	)
	return say(msgExpenseAdded), nil
}

func (e *Engine) cancelExpense(_ context.Context, chat Chat) ([]reply.Message, error) {
	s, _ := e.main.Get(chat.ID)
	if s.Step == StepIdle {
		return say(msgNothingToCancel), nil
	}
	e.main.Set(chat.ID, MainSession{})
	return say(msgExpenseCanceled), nil
}

// acceptedGroupIDs lists the groups u may act in.
func (e *Engine) acceptedGroupIDs(ctx context.Context, userID string) ([]string, error) {
	memberships, err := e.store.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	var ids []string
	for _, m := range memberships {
		if m.IsAccepted {
			ids = append(ids, m.GroupID)
		}
	}
	return ids, nil
}
