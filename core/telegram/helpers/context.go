package helpers

import (
	"context"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ctxKey is the tele.Context slot holding the per-update context.Context.
const ctxKey = "update_ctx"

// StoreContext keeps ctx on c for later helpers of the same update.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

// BuildContext returns the update context stored on c, deriving one from
// the update ids when no middleware stored it yet.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	ctx := logger.WithMeta(context.Background(), UpdateMeta(c))
	StoreContext(c, ctx)
	return ctx
}

// UpdateMeta collects the correlation ids of the update behind c. A rid set
// by the logging middleware wins over a freshly built one.
func UpdateMeta(c tele.Context) logger.Meta {
	m := logger.Meta{UpdateID: c.Update().ID}
	if chat := c.Chat(); chat != nil {
		m.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		m.UserID = user.ID
	}
	m.RID, _ = c.Get("rid").(string)
	if m.RID == "" {
		m.RID = logger.BuildRID(m.UpdateID, m.ChatID, m.UserID)
	}
	return m
}

// WithHandler tags the update context with the serving handler.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
