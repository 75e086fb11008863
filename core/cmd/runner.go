// Package cmd holds the process lifecycle shared by bot binaries: resolve
// the config path, load it, bootstrap the app and run it until a signal.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/ilyosbek9531/expense-tracker-bot/core/config"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	coretelegram "github.com/ilyosbek9531/expense-tracker-bot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier is an app config embedding the core section.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp builds the run options once bootstrap is done. Apps that
// also implement io.Closer are closed after the run returns.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wire a binary into Run. LoadConfig and Bootstrap are required;
// the rest default to the real implementations.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath when set.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o *Options) validate() error {
	var errs []error
	if o.LoadConfig == nil {
		errs = append(errs, errors.New("LoadConfig is required"))
	}
	if o.Bootstrap == nil {
		errs = append(errs, errors.New("Bootstrap is required"))
	}
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = defaultConfigEnv
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
	if o.RunTelegram == nil {
		o.RunTelegram = coretelegram.RunTelegram
	}
	if len(errs) > 0 {
		return fmt.Errorf("cmd: %w", errors.Join(errs...))
	}
	return nil
}

// Run blocks until SIGINT/SIGTERM or a fatal runtime error.
func Run(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	// Deferred in reverse: the app closes before the logger drains.
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()
	if c, ok := application.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Error(context.Background(), "app", "app.close", slog.String("err", err.Error()))
			}
		}()
	}

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	withLifecycleLogs(&runOpts, startedAt)
	return opts.RunTelegram(ctx, runOpts)
}

// load runs before the logger exists, so progress goes to the std logger.
func (o *Options) load() (ConfigCarrier, error) {
	path := ResolveConfigPath(o.ConfigPath, o.ConfigEnvVar, o.DefaultConfigPath)
	if path == "" {
		return nil, fmt.Errorf("cmd: no config path: pass --config, set %s or a default", o.ConfigEnvVar)
	}
	log.Printf("loading config: %s", path)
	cfg, err := o.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return nil, errors.New("cmd: loaded config is missing core configuration")
	}
	return cfg, nil
}

// withLifecycleLogs chains app.ready after OnStart and app.shutdown before OnStop.
func withLifecycleLogs(o *coretelegram.RunOptions, startedAt time.Time) {
	start, stop := o.OnStart, o.OnStop
	o.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if start != nil {
			if err := start(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "app.ready", slog.Duration("startup", logger.RoundMS(time.Since(startedAt))))
		return nil
	}
	o.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "app.shutdown", slog.Duration("uptime", logger.RoundMS(time.Since(startedAt))))
		if stop != nil {
			return stop(ctx, rt)
		}
		return nil
	}
}

// ResolveConfigPath picks the explicit path, then the env var, then the fallback.
func ResolveConfigPath(explicit, envVar, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}
