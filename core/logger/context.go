package logger

import "context"

type metaKey struct{}

// Meta is the per-update correlation data carried through a context.
type Meta struct {
	RID      string
	UpdateID int
	// UserID is the Telegram sender, not the bot account.
	UserID  int64
	ChatID  int64
	Handler string
}

// WithMeta replaces the correlation data stored in ctx.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFrom returns the correlation data in ctx, or the zero Meta.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

func WithRID(ctx context.Context, rid string) context.Context {
	m := MetaFrom(ctx)
	m.RID = rid
	return WithMeta(ctx, m)
}

func RIDFrom(ctx context.Context) string { return MetaFrom(ctx).RID }

// WithUpdateMeta records the update, sender and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	m := MetaFrom(ctx)
	m.UpdateID, m.UserID, m.ChatID = updateID, userID, chatID
	return WithMeta(ctx, m)
}

// WithHandler names the handler serving the update; empty is ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	m := MetaFrom(ctx)
	m.Handler = handler
	return WithMeta(ctx, m)
}

// fill copies correlation fields into rec without overriding explicit attrs.
func (m Meta) fill(rec record) {
	if m.RID != "" {
		rec.setDefault("rid", m.RID)
	}
	if m.UpdateID != 0 {
		rec.setDefault("update_id", m.UpdateID)
	}
	if m.UserID != 0 {
		rec.setDefault("user_id", m.UserID)
	}
	if m.ChatID != 0 {
		rec.setDefault("chat_id", m.ChatID)
	}
	if m.Handler != "" {
		rec.setDefault("handler", m.Handler)
	}
}
