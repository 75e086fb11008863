package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/ilyosbek9531/expense-tracker-bot/core/config"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	tghelpers "github.com/ilyosbek9531/expense-tracker-bot/core/telegram/helpers"
	tgsender "github.com/ilyosbek9531/expense-tracker-bot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with tele.Bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint such as "/start" or tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	HTTP     HTTPOptions

	DispatcherOptions tgsender.Options
	// Dispatcher replaces the one built from DispatcherOptions.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool
	// DisableHelperDispatcher makes helpers.SendText and friends send inline
	// so replies to one chat keep their order.
	DisableHelperDispatcher bool

	// OnStart runs after wiring and before updates flow. An error aborts the run.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs after the poller stopped, with the run context.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, serves updates until ctx is done and then
// runs OnStop. Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	rt, err := newRuntime(opts)
	if err != nil {
		return err
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(rt.Dispatcher)
	}
	defer func() {
		rt.Dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}()

	announce(ctx, rt.Bot, opts, time.Since(start))
	wire(rt, opts)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, rt.Bot)
	if opts.OnStop != nil {
		if err := opts.OnStop(ctx, rt); err != nil {
			return err
		}
	}
	return runErr
}

func newRuntime(opts RunOptions) (Runtime, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   opts.Config.Telegram.Token,
		Poller:  newPoller(opts.Config),
		Client:  NewHTTPClient(opts.HTTP),
		OnError: logHandlerError,
	})
	if err != nil {
		return Runtime{}, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}
	return rt, nil
}

// announce logs the update source. In long-poll mode a leftover webhook
// would block getUpdates, so it is removed first.
func announce(ctx context.Context, bot *tele.Bot, opts RunOptions, took time.Duration) {
	if wh, ok := bot.Poller.(*tele.Webhook); ok {
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
		return
	}
	attrs := []slog.Attr{
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("duration", took),
	}
	if lp, ok := bot.Poller.(*tele.LongPoller); ok {
		attrs = append(attrs, slog.Duration("poll_timeout", lp.Timeout))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode", attrs...)

	if opts.DisableWebhookCleanup || !strings.EqualFold(opts.Config.Telegram.RunMode, coreconfig.RunModeLongpoll) {
		return
	}
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
			slog.String("outcome", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "delete_webhook", slog.String("outcome", "ok"))
}

func wire(rt Runtime, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			rt.Bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			rt.Bot.Handle(r.Endpoint, r.Handler)
		}
	}
	// A missing command menu is cosmetic; PublishCommands logs the failure.
	_ = rt.Registry.PublishCommands(rt.Bot)
}

// serve runs the poller until ctx is done. Cancellation is not an error.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
	}
	if err := ctx.Err(); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// logHandlerError receives handler errors after the router already logged
// the handled line.
func logHandlerError(err error, c tele.Context) {
	if err == nil {
		return
	}
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Debug(ctx, "tg", "handler.error", slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
}
