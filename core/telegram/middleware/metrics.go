package middleware

import (
	"github.com/prometheus/client_golang/prometheus"

	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "tg",
		Name:      "updates_total",
		Help:      "Inbound updates by kind.",
	}, []string{"kind"})
	repliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "tg",
		Name:      "replies_total",
		Help:      "Outbound sends and edits made while handling updates.",
	}, []string{"keyboard"})
	limitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "tg",
		Name:      "rate_limited_total",
		Help:      "Updates dropped by the per-user rate limit.",
	}, []string{"kind"})
	panicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "expensebot",
		Subsystem: "tg",
		Name:      "handler_panics_total",
		Help:      "Handler panics recovered by the transport.",
	})
)

// Collectors returns the transport metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{updatesTotal, repliesTotal, limitedTotal, panicsTotal}
}

// Per-update counters kept on tele.Context for the handler summary line.
const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil && u.Message.Document != nil:
		return "document"
	case u.Message != nil:
		return "message"
	}
	return "other"
}

// hasKeyboard reports whether a send or edit carries reply markup, either
// as the payload itself or among the options.
func hasKeyboard(what interface{}, opts []interface{}) bool {
	for _, o := range append([]interface{}{what}, opts...) {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext counts successful outbound calls made through the
// wrapped tele.Context.
type countingContext struct{ tele.Context }

func (c countingContext) count(err error, what interface{}, opts []interface{}) error {
	if err != nil {
		return err
	}
	n, kb := GetCounters(c)
	c.Set(keyMessages, n+1)
	if hasKeyboard(what, opts) {
		kb = true
		repliesTotal.WithLabelValues("true").Inc()
	} else {
		repliesTotal.WithLabelValues("false").Inc()
	}
	c.Set(keyKeyboard, kb)
	return nil
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Send(what, opts...), what, opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Reply(what, opts...), what, opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Edit(what, opts...), what, opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.EditOrSend(what, opts...), what, opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.EditOrReply(what, opts...), what, opts)
}

// MessageMetricsMiddleware counts the update and the replies made for it.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		updatesTotal.WithLabelValues(updateKind(c.Update())).Inc()
		c.Set(keyMessages, 0)
		c.Set(keyKeyboard, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns the replies sent so far for the update behind c and
// whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return n, kb
}
