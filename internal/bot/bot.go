// Package bot binds the conversation engine to Telegram through telebot.
package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	tg "github.com/ilyosbek9531/expense-tracker-bot/core/telegram"
	tghelpers "github.com/ilyosbek9531/expense-tracker-bot/core/telegram/helpers"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/router"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/callback"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/conversation"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/reply"
)

const (
	msgFailure        = "⚠️ Something went wrong. Please try again later."
	msgUnknownAction  = "This button is no longer supported."
	msgUnexpectedFile = "Files are not supported. Please use the menu below. 👇"
)

// Engine is the conversation surface the transport drives.
type Engine interface {
	Pending(chatID int64) bool
	Start(ctx context.Context, chat conversation.Chat) ([]reply.Message, error)
	Help() []reply.Message
	Cancel(ctx context.Context, chat conversation.Chat) ([]reply.Message, error)
	HandleText(ctx context.Context, chat conversation.Chat, text string) ([]reply.Message, error)
	HandleCallback(ctx context.Context, chat conversation.Chat, data callback.Data) ([]reply.Message, error)
}

var _ router.Fallbacks = (*Bot)(nil)

// Bot owns the registry and the handlers bound to it.
type Bot struct {
	engine  Engine
	reg     *tg.Registry
	adminID int64
	status  func() string
}

// Options configures a Bot.
type Options struct {
	Engine Engine
	// AdminID receives access to /status.
	AdminID int64
	// Status renders the /status body. The command is only registered
	// when both Status and AdminID are set.
	Status func() string
}

func New(opts Options) *Bot {
	b := &Bot{
		engine:  opts.Engine,
		reg:     tg.NewRegistry(),
		adminID: opts.AdminID,
		status:  opts.Status,
	}
	b.register()
	return b
}

// Registry exposes the commands and callbacks the bot registered.
func (b *Bot) Registry() *tg.Registry { return b.reg }

func (b *Bot) register() {
	cmds := map[string]tg.Command{
		"/start":  {Handler: b.onStart, Description: "Open your menu or register/login"},
		"/help":   {Handler: b.onHelp, Description: "Show available commands"},
		"/cancel": {Handler: b.onCancel, Description: "Cancel the current action"},
	}
	if b.status != nil && b.adminID != 0 {
		cmds["/status"] = tg.Command{Handler: b.onStatus, Description: "Runtime status", AdminOnly: true, Hidden: true}
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, b.reg.RegisterCommand(name, cmd))
	}
	for _, a := range callback.Actions {
		errs = append(errs, b.reg.RegisterCallback(string(a), b.onCallback))
	}
	if err := errors.Join(errs...); err != nil {
		logger.Error(context.Background(), "tg.wire", "register.fail", slog.String("err", err.Error()))
	}
	b.reg.SetCallbackNotFound(b.UnknownCallback())
	b.reg.SetTextFallback(b.onText)
}

// Routes returns every route the bot serves: commands, callbacks, then text.
func (b *Bot) Routes() []tg.Route {
	return router.Routes(router.Options{
		Registry:  b.reg,
		Flow:      flow{b},
		Fallbacks: b,
		AdminID:   b.adminID,
	})
}

// flow lets the text router send chats with a pending flow straight to the engine.
type flow struct{ b *Bot }

func (f flow) InProgress(chatID int64) bool   { return f.b.engine.Pending(chatID) }
func (f flow) Continue(c tele.Context) error { return f.b.onText(c) }

func (b *Bot) UnknownText() tele.HandlerFunc { return b.onText }

func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnexpectedFile)
	}
}

func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: msgUnknownAction})
	}
}

func chatOf(c tele.Context) conversation.Chat {
	chat := conversation.Chat{}
	if c.Chat() != nil {
		chat.ID = c.Chat().ID
	}
	if s := c.Sender(); s != nil {
		chat.Handle = s.Username
	}
	return chat
}

func (b *Bot) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return b.reply(ctx, c)(b.engine.Start(ctx, chatOf(c)))
}

func (b *Bot) onHelp(c tele.Context) error {
	return render(c, b.engine.Help())
}

func (b *Bot) onCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return b.reply(ctx, c)(b.engine.Cancel(ctx, chatOf(c)))
}

func (b *Bot) onText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return b.reply(ctx, c)(b.engine.HandleText(ctx, chatOf(c), c.Text()))
}

func (b *Bot) onCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cb := c.Callback()
	data, err := callback.Decode(cb.Unique, cb.Data)
	if err != nil {
		logger.Debug(ctx, "tg", "callback.decode",
			slog.String("cb_key", cb.Unique),
			slog.String("err", err.Error()),
		)
		return b.UnknownCallback()(c)
	}
	return b.reply(ctx, c)(b.engine.HandleCallback(ctx, chatOf(c), data))
}

func (b *Bot) onStatus(c tele.Context) error {
	return tghelpers.SendText(c, b.status())
}

// reply renders msgs, or a generic failure text when the engine failed.
// The engine error is still returned so the router records the failure.
func (b *Bot) reply(ctx context.Context, c tele.Context) func([]reply.Message, error) error {
	return func(msgs []reply.Message, err error) error {
		if err != nil {
			logger.Error(ctx, "tg", "handler.fail", slog.String("err", err.Error()))
			if sendErr := tghelpers.SendText(c, msgFailure); sendErr != nil {
				return errors.Join(err, sendErr)
			}
			return err
		}
		return render(c, msgs)
	}
}
