// Package logger provides the process-wide structured logger. Lines are
// rendered as JSON, key=value or colored text and written asynchronously to
// stdout plus optional files under logging.dir.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	coreconfig "github.com/ilyosbek9531/expense-tracker-bot/core/config"
)

var (
	// L is the root logger. TG carries Telegram transport events and TWire
	// handler registration. All three discard output until InitLogger runs.
	L     = discard()
	TG    = discard()
	TWire = discard()

	level        slog.LevelVar
	debugSampler ratioSampler

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	writer  *asyncWriter
	closers []io.Closer
)

const defaultDebugSample = "1/50"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// InitLogger configures the package loggers once. Later calls return the
// first result.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() { initErr = setup(cfg) })
	return initErr
}

func setup(cfg *coreconfig.Config) error {
	if cfg == nil {
		cfg = &coreconfig.Config{}
	}
	lc := cfg.Logging

	level.Set(parseLevel(lc.Level))
	if traceEnabled() {
		level.Set(slog.LevelDebug)
	}
	sample := lc.DebugSample
	if strings.TrimSpace(sample) == "" {
		sample = defaultDebugSample
	}
	debugSampler.Set(parseRatio(sample))

	outs := []output{{w: os.Stdout, min: slog.LevelDebug}}
	files, err := openFiles(lc)
	if err != nil {
		return err
	}
	for _, f := range files {
		outs = append(outs, f.output)
		closers = append(closers, f.file)
	}

	mu.Lock()
	writer = newAsyncWriter(4096, outs...)
	mu.Unlock()

	var h slog.Handler
	switch format := selectFormat(cfg); format {
	case formatPretty:
		h = newPrettyHandler(writer, &level)
	default:
		h = newLineHandler(writer, &level, format, parseKeyOrder(lc.KeysOrder))
	}

	L = slog.New(h)
	if p := strings.TrimSpace(lc.Profile); p != "" {
		L = L.With(slog.String("profile", p))
	}
	TG = Component("tg")
	TWire = Component("tg.wire")
	slog.SetDefault(L)
	return nil
}

type openedFile struct {
	output
	file *os.File
}

// openFiles opens bot_file (every line) and errors_file (WARN and above)
// under dir. A missing dir disables file output.
func openFiles(lc coreconfig.LoggingConfig) ([]openedFile, error) {
	dir := strings.TrimSpace(lc.Dir)
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create dir: %w", err)
	}
	var out []openedFile
	for _, target := range []struct {
		name string
		min  slog.Level
	}{
		{lc.BotFile, slog.LevelDebug},
		{lc.ErrorsFile, slog.LevelWarn},
	} {
		name := strings.TrimSpace(target.name)
		if name == "" {
			continue
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			for _, o := range out {
				_ = o.file.Close()
			}
			return nil, fmt.Errorf("logger: open %s: %w", name, err)
		}
		out = append(out, openedFile{output: output{w: f, min: target.min}, file: f})
	}
	return out, nil
}

// Shutdown flushes pending lines and closes log files.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	var errs []error
	if writer != nil {
		errs = append(errs, writer.Close())
		writer = nil
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	closers = nil
	return errors.Join(errs...)
}

func selectFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch logFormat(strings.ToLower(strings.TrimSpace(cfg.Logging.Format))) {
	case formatKV:
		return formatKV
	case formatPretty:
		return formatPretty
	}
	return formatJSON
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// traceEnabled reports whether TRACE or LOG_TRACE forces debug output.
func traceEnabled() bool {
	for _, key := range []string{"TRACE", "LOG_TRACE"} {
		switch strings.ToLower(os.Getenv(key)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

// parseKeyOrder reads a comma separated key list; ts and level always lead.
func parseKeyOrder(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	order := []string{"ts", "level"}
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k != "" && k != "ts" && k != "level" {
			order = append(order, k)
		}
	}
	return order
}

// Component returns L tagged with a component name.
func Component(name string) *slog.Logger {
	return L.With(slog.String("component", name))
}

// LogEvent writes one event through logg, or L when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = L
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !logg.Enabled(ctx, lvl) {
		return
	}
	logg.LogAttrs(ctx, lvl, event, append([]slog.Attr{slog.String("event", event)}, attrs...)...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. It is false when debug is disabled.
func ShouldSampleDebug() bool {
	return level.Level() <= slog.LevelDebug && debugSampler.Allow()
}
