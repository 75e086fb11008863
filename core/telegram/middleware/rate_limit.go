package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	tghelpers "github.com/ilyosbek9531/expense-tracker-bot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds (callback, message, document) that bypass the limit.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// lastSeen tracks the previous accepted update per Telegram user.
type lastSeen struct {
	mu sync.Mutex
	at map[int64]time.Time
}

// admit records now for user unless the previous update is closer than gap.
func (l *lastSeen) admit(user int64, now time.Time, gap time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.at[user]; ok && now.Sub(prev) < gap {
		return false
	}
	l.at[user] = now
	return true
}

// RateLimitMiddleware drops updates arriving faster than Interval from the
// same user. Dropped updates are counted and passed to OnLimited.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	seen := &lastSeen{at: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.admit(user.ID, time.Now(), opts.Interval) {
				return next(c)
			}

			limitedTotal.WithLabelValues(kind).Inc()
			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("outcome", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
