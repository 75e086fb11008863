// Package settlement nets the unsettled expenses of a group into per-user
// debts and credits.
package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
)

// Result is the netted position of every user touched by a set of expenses.
// A user ends up in exactly one of Debts or Credits; a net of zero is kept
// as a zero debt.
type Result struct {
	// Total is the sum of all expense amounts before netting.
	Total   decimal.Decimal
	Debts   map[string]decimal.Decimal
	Credits map[string]decimal.Decimal

	debtOrder   []string
	creditOrder []string
	users       map[string]domain.User
	userOrder   []string
}

// Compute nets expenses. It reads expense owners and victims but never
// modifies the input. Expenses without victims contribute credit only.
func Compute(expenses []domain.Expense) Result {
	r := Result{
		Total:   decimal.Zero,
		Debts:   make(map[string]decimal.Decimal),
		Credits: make(map[string]decimal.Decimal),
		users:   make(map[string]domain.User),
	}

	for _, e := range expenses {
		r.Total = r.Total.Add(e.Amount)
		r.remember(e.Owner, e.OwnerID)

		victims := victimsOf(e)
		if n := len(victims); n > 0 {
			share := e.Amount.Div(decimal.NewFromInt(int64(n)))
			for _, v := range victims {
				r.remember(v, v.ID)
				if _, ok := r.Debts[v.ID]; !ok {
					r.debtOrder = append(r.debtOrder, v.ID)
				}
				r.Debts[v.ID] = r.Debts[v.ID].Add(share)
			}
		}

		if _, ok := r.Credits[e.OwnerID]; !ok {
			r.creditOrder = append(r.creditOrder, e.OwnerID)
		}
		r.Credits[e.OwnerID] = r.Credits[e.OwnerID].Add(e.Amount)
	}

	for _, id := range r.creditOrder {
		credit := r.Credits[id]
		debt, ok := r.Debts[id]
		if !ok {
			continue
		}
		net := credit.Sub(debt)
		if net.IsPositive() {
			r.Credits[id] = net
			delete(r.Debts, id)
		} else {
			delete(r.Credits, id)
			r.Debts[id] = net.Abs()
		}
	}
	return r
}

// victimsOf prefers loaded victim users and falls back to bare ids.
func victimsOf(e domain.Expense) []domain.User {
	if len(e.Victims) > 0 {
		return e.Victims
	}
	out := make([]domain.User, 0, len(e.VictimIDs))
	for _, id := range e.VictimIDs {
		out = append(out, domain.User{ID: id})
	}
	return out
}

func (r *Result) remember(u domain.User, id string) {
	if _, ok := r.users[id]; ok {
		return
	}
	if u.ID == "" {
		u.ID = id
	}
	r.users[id] = u
	r.userOrder = append(r.userOrder, id)
}

// Debtors returns user ids with a residual debt in first-seen order.
func (r Result) Debtors() []string {
	return present(r.debtOrder, r.Debts)
}

// Creditors returns user ids with a residual credit in first-seen order.
func (r Result) Creditors() []string {
	return present(r.creditOrder, r.Credits)
}

// Participants returns every owner and victim in first-seen order.
func (r Result) Participants() []domain.User {
	out := make([]domain.User, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		out = append(out, r.users[id])
	}
	return out
}

// User returns the participant with id.
func (r Result) User(id string) (domain.User, bool) {
	u, ok := r.users[id]
	return u, ok
}

// Net returns credit minus debt for a user.
func (r Result) Net(id string) decimal.Decimal {
	return r.Credits[id].Sub(r.Debts[id])
}

func present(order []string, m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for _, id := range order {
		if _, ok := m[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
