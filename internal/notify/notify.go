// Package notify fans settlement results and direct notices out to users.
// One recipient failing never stops delivery to the rest.
package notify

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/settlement"
)

const (
	// RichAnimationURL is sent to users who end up owed money.
	RichAnimationURL = "https://media.tenor.com/4PgHCbk6yAEAAAAM/rich-cash.gif"
	// SadAnimationURL is sent to users who end up owing money.
	SadAnimationURL = "https://media.tenor.com/6CujUsC1CIkAAAAM/crying-black-guy-meme50fps-interpolated-interpolated.gif"
)

const component = "notify"

// Notice is one message addressed to a chat. AnimationURL, when set, is
// delivered after Text.
type Notice struct {
	ChatID       int64
	Text         string
	AnimationURL string
}

// Deliverer sends a notice to its chat and returns the final outcome.
type Deliverer interface {
	Deliver(ctx context.Context, n Notice) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, n Notice) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notice) error { return f(ctx, n) }

// Report counts the outcome of a fan-out.
type Report struct {
	Delivered int
	Failed    int
}

// Dispatcher fans notices out through a Deliverer.
type Dispatcher struct {
	out Deliverer
}

func NewDispatcher(out Deliverer) *Dispatcher {
	return &Dispatcher{out: out}
}

// AnimationFor picks the asset by the sign of net; zero gets none.
func AnimationFor(net decimal.Decimal) string {
	switch net.Sign() {
	case 1:
		return RichAnimationURL
	case -1:
		return SadAnimationURL
	}
	return ""
}

// Settlement sends every participant of r their personal summary.
func (d *Dispatcher) Settlement(ctx context.Context, r settlement.Result) Report {
	participants := r.Participants()
	notices := make([]Notice, 0, len(participants))
	for _, u := range participants {
		notices = append(notices, Notice{
			ChatID:       u.ChatID,
			Text:         r.PersonalSummary(u.ID),
			AnimationURL: AnimationFor(r.Net(u.ID)),
		})
	}
	rep := d.send(ctx, "notify.settlement", notices)
	logger.Info(ctx, component, "notify.settlement",
		slog.Int("recipients", len(notices)),
		slog.Int("delivered", rep.Delivered),
		slog.Int("failed", rep.Failed),
	)
	return rep
}

// Broadcast sends the same text to every user.
func (d *Dispatcher) Broadcast(ctx context.Context, users []domain.User, text string) Report {
	notices := make([]Notice, 0, len(users))
	for _, u := range users {
		notices = append(notices, Notice{ChatID: u.ChatID, Text: text})
	}
	rep := d.send(ctx, "notify.broadcast", notices)
	logger.Debug(ctx, component, "notify.broadcast",
		slog.Int("recipients", len(notices)),
		slog.Int("failed", rep.Failed),
	)
	return rep
}

// Direct sends a single best-effort notice and reports whether it went out.
func (d *Dispatcher) Direct(ctx context.Context, chatID int64, text string) bool {
	return d.send(ctx, "notify.direct", []Notice{{ChatID: chatID, Text: text}}).Failed == 0
}

func (d *Dispatcher) send(ctx context.Context, event string, notices []Notice) Report {
	var rep Report
	for _, n := range notices {
		if d.out == nil {
			rep.Failed++
			continue
		}
		if err := d.out.Deliver(ctx, n); err != nil {
			rep.Failed++
			logger.Warn(ctx, component, event+".fail",
				slog.Int64("chat_id", n.ChatID),
				slog.String("err", err.Error()),
			)
			continue
		}
		rep.Delivered++
	}
	return rep
}
