package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// record is one log line before encoding.
type record map[string]any

func (r record) setDefault(key string, v any) {
	if _, ok := r[key]; !ok {
		r[key] = v
	}
}

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// normalize fills event and component, canonicalizes status and outcome,
// and drops empty values.
func (r record) normalize(message string) {
	if r.str("event") == "" {
		if message == "" {
			message = "unknown"
		}
		r["event"] = message
	}
	if r.str("component") == "" {
		r["component"] = "app"
	}
	if s := strings.ToLower(strings.TrimSpace(r.str("status"))); s != "" {
		r["status"] = s
	}
	if o := strings.ToLower(strings.TrimSpace(r.str("outcome"))); o != "" {
		if knownOutcome(o) {
			r["outcome"] = o
		} else {
			delete(r, "outcome")
		}
	}
	for k, v := range r {
		if v == nil || r.str(k) == "" {
			delete(r, k)
		}
	}
}

func knownOutcome(o string) bool {
	switch o {
	case "ok", "fail", "cancelled", "rate_limited":
		return true
	}
	return false
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	}
	return "ERROR"
}

// defaultKeyOrder puts correlation and outcome fields first; anything not
// listed follows alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"cb_key", "outcome", "duration_ms", "messages", "kb",
	"payload", "lang", "username",
	"mode", "listen", "public_url", "http_code",
	"driver", "db", "host",
	"group_id", "expense_id", "membership_id",
	"recipients", "delivered", "failed",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
}
