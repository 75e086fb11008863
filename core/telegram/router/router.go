// Package router turns a Registry into telebot routes: slash commands,
// callback buttons, free text and documents. Every route ends with one
// handler.handled log line.
package router

import (
	"log/slog"
	"time"

	tg "github.com/ilyosbek9531/expense-tracker-bot/core/telegram"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// Flow reports chats with a multi-step conversation in progress. Their text
// goes to Continue before command lookup.
type Flow interface {
	InProgress(chatID int64) bool
	Continue(c tele.Context) error
}

// Fallbacks handle updates no route claimed.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Options configures Routes.
type Options struct {
	Registry  *tg.Registry
	Flow      Flow
	Fallbacks Fallbacks
	// AdminID gates AdminOnly commands. Zero rejects them for everyone.
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// Routes returns command routes followed by the callback, text and
// document routes.
func Routes(opts Options) []tg.Route {
	if opts.Registry == nil {
		return nil
	}
	r := routes{opts}
	cmds := opts.Registry.Commands()
	out := make([]tg.Route, 0, len(cmds)+3)
	for name, cmd := range cmds {
		out = append(out, tg.Route{Endpoint: name, Handler: r.command(name, cmd)})
	}
	out = append(out,
		tg.Route{Endpoint: tele.OnCallback, Handler: r.callback},
		tg.Route{Endpoint: tele.OnText, Handler: r.text},
		tg.Route{Endpoint: tele.OnDocument, Handler: r.document},
	)
	return out
}

type routes struct{ Options }

func (r routes) command(name string, cmd tg.Command) tele.HandlerFunc {
	handler := handlerName(name)
	return func(c tele.Context) error {
		s := begin(c, handler)
		if cmd.AdminOnly && !r.isAdmin(c) {
			s.outcome = "denied"
			return s.done(r.reject(c))
		}
		return s.done(cmd.Handler(c))
	}
}

func (r routes) isAdmin(c tele.Context) bool {
	u := c.Sender()
	return r.AdminID != 0 && u != nil && u.ID == r.AdminID
}

func (r routes) reject(c tele.Context) error {
	if r.OnAdminReject != nil {
		return r.OnAdminReject(c)
	}
	return nil
}

func (r routes) callback(c tele.Context) error {
	if c.Callback() == nil {
		return nil
	}
	key := callbacks.Key(c)
	s := begin(c, "callback."+handlerName(key), slog.String("cb_key", key))
	_ = c.Respond()

	if h, ok := r.Registry.GetCallback(key); ok {
		return s.done(h(c))
	}
	s.extra = append(s.extra, slog.String("reason", "not_found"))
	fallback := r.Registry.CallbackNotFound()
	if fallback == nil && r.Fallbacks != nil {
		fallback = r.Fallbacks.UnknownCallback()
	}
	return s.done(call(fallback, c))
}

func (r routes) text(c tele.Context) error {
	if r.Flow != nil && c.Chat() != nil && r.Flow.InProgress(c.Chat().ID) {
		return begin(c, "flow").done(r.Flow.Continue(c))
	}
	if name, cmd, ok := r.Registry.LookupCommand(c.Text()); ok {
		return r.command(name, cmd)(c)
	}
	if fb := r.Registry.TextFallback(); fb != nil {
		return begin(c, "fallback").done(fb(c))
	}
	s := begin(c, "unknown_text")
	if r.Fallbacks == nil {
		s.status = "skip"
	}
	return s.done(call(r.unknown(Fallbacks.UnknownText), c))
}

func (r routes) document(c tele.Context) error {
	if r.Flow != nil && c.Chat() != nil && r.Flow.InProgress(c.Chat().ID) {
		return begin(c, "flow_document").done(r.Flow.Continue(c))
	}
	s := begin(c, "unexpected_document")
	if r.Fallbacks == nil {
		s.status = "skip"
	}
	return s.done(call(r.unknown(Fallbacks.UnknownDocument), c))
}

func (r routes) unknown(pick func(Fallbacks) tele.HandlerFunc) tele.HandlerFunc {
	if r.Fallbacks == nil {
		return nil
	}
	return pick(r.Fallbacks)
}

func call(h tele.HandlerFunc, c tele.Context) error {
	if h == nil {
		return nil
	}
	return h(c)
}

// begin starts the summary of one handled update.
func begin(c tele.Context, handler string, extra ...slog.Attr) *summary {
	return &summary{c: c, handler: handler, start: time.Now(), extra: extra}
}
