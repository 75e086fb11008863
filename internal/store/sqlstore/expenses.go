package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
)

type expenseRow struct {
	ID          string          `db:"id"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	OwnerID     string          `db:"owner_id"`
	GroupID     string          `db:"group_id"`
	IsSettled   bool            `db:"is_settled"`
	CreatedAt   time.Time       `db:"created_at"`
}

type victimRow struct {
	ExpenseID string `db:"expense_id"`
	domain.User
}

// CreateExpense inserts the expense and its ordered victims in one transaction.
func (s *Store) CreateExpense(ctx context.Context, in domain.NewExpense) (*domain.Expense, error) {
	if len(in.VictimIDs) == 0 || !in.Amount.IsPositive() {
		return nil, fmt.Errorf("create expense: %w", domain.ErrInvalidInput)
	}
	e := domain.Expense{
		ID:          uuid.New().String(),
		Amount:      in.Amount,
		Description: in.Description,
		OwnerID:     in.OwnerID,
		GroupID:     in.GroupID,
		VictimIDs:   append([]string(nil), in.VictimIDs...),
		CreatedAt:   s.now(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin expense tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO expenses (id, amount, description, owner_id, group_id, is_settled, created_at)
		VALUES (?, ?, ?, ?, ?, FALSE, ?)`),
		e.ID, e.Amount, e.Description, e.OwnerID, e.GroupID, e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	insertVictim := tx.Rebind(`INSERT INTO expense_victims (expense_id, user_id, position) VALUES (?, ?, ?)`)
	for i, victimID := range e.VictimIDs {
		if _, err := tx.ExecContext(ctx, insertVictim, e.ID, victimID, i); err != nil {
			return nil, fmt.Errorf("insert expense victim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit expense: %w", err)
	}
	return &e, nil
}

// ListUnsettledExpensesForGroup loads expenses with their owner and ordered victims.
func (s *Store) ListUnsettledExpensesForGroup(ctx context.Context, groupID string) ([]domain.Expense, error) {
	var rows []expenseRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, amount, description, owner_id, group_id, is_settled, created_at
		FROM expenses
		WHERE group_id = ? AND is_settled = FALSE
		ORDER BY created_at, id`), groupID)
	if err != nil {
		return nil, fmt.Errorf("list unsettled expenses: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var victims []victimRow
	err = s.db.SelectContext(ctx, &victims, s.db.Rebind(`
		SELECT v.expense_id,
		       u.id, u.username, u.password, u.chat_id, u.telegram_username, u.role, u.is_accepted, u.created_at
		FROM expense_victims v
		JOIN expenses e ON e.id = v.expense_id
		JOIN users u ON u.id = v.user_id
		WHERE e.group_id = ? AND e.is_settled = FALSE
		ORDER BY v.expense_id, v.position`), groupID)
	if err != nil {
		return nil, fmt.Errorf("list expense victims: %w", err)
	}
	byExpense := make(map[string][]domain.User, len(rows))
	for _, v := range victims {
		byExpense[v.ExpenseID] = append(byExpense[v.ExpenseID], v.User)
	}

	ownerIDs := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.OwnerID]; ok {
			continue
		}
		seen[r.OwnerID] = struct{}{}
		ownerIDs = append(ownerIDs, r.OwnerID)
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("build owners query: %w", err)
	}
	var owners []domain.User
	if err := s.db.SelectContext(ctx, &owners, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list expense owners: %w", err)
	}
	ownerByID := make(map[string]domain.User, len(owners))
	for _, o := range owners {
		ownerByID[o.ID] = o
	}

	out := make([]domain.Expense, 0, len(rows))
	for _, r := range rows {
		e := domain.Expense{
			ID:          r.ID,
			Amount:      r.Amount,
			Description: r.Description,
			OwnerID:     r.OwnerID,
			GroupID:     r.GroupID,
			IsSettled:   r.IsSettled,
			CreatedAt:   r.CreatedAt,
			Owner:       ownerByID[r.OwnerID],
			Victims:     byExpense[r.ID],
		}
		for _, v := range e.Victims {
			e.VictimIDs = append(e.VictimIDs, v.ID)
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkGroupExpensesSettled flips every unsettled expense of the group.
func (s *Store) MarkGroupExpensesSettled(ctx context.Context, groupID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE expenses SET is_settled = TRUE WHERE group_id = ? AND is_settled = FALSE`), groupID)
	if err != nil {
		return 0, fmt.Errorf("settle group expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
