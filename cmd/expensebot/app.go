package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ilyosbek9531/expense-tracker-bot/core/bootstrap"
	"github.com/ilyosbek9531/expense-tracker-bot/core/buildinfo"
	corecmd "github.com/ilyosbek9531/expense-tracker-bot/core/cmd"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	tg "github.com/ilyosbek9531/expense-tracker-bot/core/telegram"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/middleware"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/sender"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/bot"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/config"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/conversation"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/credential"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/notify"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/ops"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store/memstore"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store/sqlstore"
)

// app wires storage, the conversation engine and the transport together.
type app struct {
	cfg       *config.Config
	store     store.Store
	deliverer *bot.Deliverer
	bot       *bot.Bot
	ops       *ops.Server
	startedAt time.Time
	disp      atomic.Pointer[sender.Dispatcher]
}

func newApp(ctx context.Context, cfg *config.Config, memory bool) (*app, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:       &cfg.Config,
		Database:     cfg.Database,
		Migrations:   sqlstore.Migrations,
		SkipDatabase: memory,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, deliverer: &bot.Deliverer{}, startedAt: time.Now()}
	if memory {
		a.store = memstore.New()
		logger.Warn(ctx, "db", "store.memory", slog.String("reason", "--memory flag"))
	} else {
		a.store = sqlstore.New(res.DB)
	}

	verifier, err := credential.New(cfg.Auth.PasswordMode)
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	if err := a.seedRoot(ctx, verifier); err != nil {
		_ = a.store.Close()
		return nil, err
	}

	engine := conversation.New(conversation.Options{
		Store:          a.store,
		Verifier:       verifier,
		Notifier:       notify.NewDispatcher(a.deliverer),
		SupportContact: cfg.Auth.SupportContact,
	})
	a.bot = bot.New(bot.Options{
		Engine:  engine,
		AdminID: cfg.Telegram.AdminID,
		Status:  a.status,
	})

	a.ops, err = ops.New(ops.Options{
		Listen:            cfg.Ops.Listen,
		KeepaliveURL:      cfg.Ops.KeepaliveURL,
		KeepaliveSchedule: cfg.Ops.KeepaliveSchedule,
		Collectors:        collectors(),
	})
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	return a, nil
}

func collectors() []prometheus.Collector {
	var out []prometheus.Collector
	out = append(out, middleware.Collectors()...)
	out = append(out, sender.Collectors()...)
	out = append(out, tg.Collectors()...)
	return out
}

// seedRoot makes sure the configured ROOT account exists.
func (a *app) seedRoot(ctx context.Context, verifier credential.Verifier) error {
	if a.cfg.Auth.RootUsername == "" {
		return nil
	}
	password, err := verifier.Hash(a.cfg.Auth.RootPassword)
	if err != nil {
		return err
	}
	u, created, err := store.EnsureRoot(ctx, a.store, domain.NewUser{
		Username: a.cfg.Auth.RootUsername,
		Password: password,
		ChatID:   a.cfg.Telegram.AdminID,
	})
	if err != nil {
		return fmt.Errorf("seed root account: %w", err)
	}
	logger.Info(ctx, "service.auth", "root.seed",
		slog.String("user_id", u.ID),
		slog.Bool("created", created),
	)
	return nil
}

func (a *app) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:   &a.cfg.Config,
		Registry: a.bot.Registry(),
		// Replies go out inline so a chat sees them in order; the
		// dispatcher still carries cross-chat notices.
		DisableHelperDispatcher: true,
		Middlewares:             tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:                  a.bot.Routes(),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.disp.Store(rt.Dispatcher)
			if err := a.deliverer.Bind(ctx, rt); err != nil {
				return err
			}
			return a.ops.Start(ctx)
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			// The run context is already canceled at this point.
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return a.ops.Shutdown(stopCtx)
		},
	}, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *app) status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", buildinfo.String())
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(a.startedAt).Round(time.Second))
	storage := "memory"
	if _, ok := a.store.(*sqlstore.Store); ok {
		storage = a.cfg.Database.Driver
	}
	fmt.Fprintf(&b, "Storage: %s\n", storage)
	if d := a.disp.Load(); d != nil {
		fmt.Fprintf(&b, "Failed sends: %d", d.ErrorCount())
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	_ corecmd.TelegramApp = (*app)(nil)
	_ io.Closer           = (*app)(nil)
)
