package settlement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
)

// DateLayout renders expense timestamps, e.g. "2 January, 2006, 15:04".
const DateLayout = "2 January, 2006, 15:04"

var thousand = decimal.NewFromInt(1000)

// RoundThousand rounds d to the nearest multiple of 1000, halves away from zero.
func RoundThousand(d decimal.Decimal) decimal.Decimal {
	return d.Div(thousand).Round(0).Mul(thousand)
}

// FormatAmount groups the integer part by thousands with spaces and keeps
// at most three fraction digits: 12000 -> "12 000", 1234.5 -> "1 234.5".
func FormatAmount(d decimal.Decimal) string {
	d = d.Round(3)
	neg := d.IsNegative()
	s := d.Abs().String()

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	if frac = strings.TrimRight(frac, "0"); frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// Summary renders the group view: the raw total, then each debtor and
// each creditor with the exact amount and its nearest-thousand rounding.
func (r Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📉 Financial Summary:\n\n💰 Overall: %s\n\n", FormatAmount(r.Total))

	debtors := r.Debtors()
	for i, id := range debtors {
		d := r.Debts[id]
		fmt.Fprintf(&b, "%s owes: %s = %s", r.name(id), d.StringFixed(2), FormatAmount(RoundThousand(d)))
		if i == len(debtors)-1 {
			b.WriteString("\n\n")
		} else {
			b.WriteString("\n")
		}
	}
	for _, id := range r.Creditors() {
		c := r.Credits[id]
		fmt.Fprintf(&b, "%s should receive: %s = %s\n", r.name(id), c.StringFixed(2), FormatAmount(RoundThousand(c)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// PersonalSummary renders one user's position with raw two-decimal amounts.
func (r Result) PersonalSummary(id string) string {
	debt, credit := r.Debts[id], r.Credits[id]
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Your Expense Summary:\n\n💰 Overall: %s\n\n", credit.Sub(debt).Round(2).String())
	if debt.IsPositive() {
		fmt.Fprintf(&b, "You owe: %s\n", debt.StringFixed(2))
	}
	if credit.IsPositive() {
		fmt.Fprintf(&b, "You should receive: %s\n", credit.StringFixed(2))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r Result) name(id string) string {
	if u, ok := r.users[id]; ok && u.Username != "" {
		return u.Username
	}
	return id
}

// FormatExpense renders one expense for the history view.
func FormatExpense(e domain.Expense) string {
	names := make([]string, 0, len(e.Victims))
	for _, v := range e.Victims {
		names = append(names, v.Username)
	}
	return fmt.Sprintf("Amount: %s \nDescription: %s \nOwner: %s \nVictims: [ %s ] \nCreated At: %s",
		FormatAmount(e.Amount), e.Description, e.Owner.Username, strings.Join(names, ", "),
		e.CreatedAt.Format(DateLayout))
}
