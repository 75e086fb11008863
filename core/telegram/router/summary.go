package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	tghelpers "github.com/ilyosbek9531/expense-tracker-bot/core/telegram/helpers"
	"github.com/ilyosbek9531/expense-tracker-bot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

type summary struct {
	c       tele.Context
	handler string
	start   time.Time
	status  string
	outcome string
	extra   []slog.Attr
}

// done logs the handled line and passes err through.
func (s *summary) done(err error) error {
	ctx := tghelpers.WithHandler(s.c, s.handler)
	msgs, kb := middleware.GetCounters(s.c)

	status, outcome := s.status, s.outcome
	if status == "" {
		status = "ok"
	}
	if outcome == "" {
		outcome = "ok"
	}
	if err != nil {
		status, outcome = "fail", "fail"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, s.extra...)...)
	return err
}

// handlerName lowercases a command or callback key for use as a log label.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode names err by its Code method when present, else by the
// innermost wrapped error type.
func errorCode(err error) string {
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(next) {
		err = next
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
